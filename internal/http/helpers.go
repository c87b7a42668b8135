package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// formatAmount formats a dollar total with thousands separators and cents (e.g. "$1,234.50").
func formatAmount(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(result)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID(*http.Request) string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

var templateFuncs = template.FuncMap{
	"amount":   formatAmount,
	"rank":     func(i int) int { return i + 1 },
	"ago":      humanize.Time,
	"count":    func(n int) string { return humanize.Comma(int64(n)) },
	"quarters": func() []string { return []string{"1", "2", "3", "4"} },
}
