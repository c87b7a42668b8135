package chart

import (
	"github.com/dustin/go-humanize"
)

// humanizeAmount formats an axis value compactly, e.g. 1.5e9 -> "1.5 B".
func humanizeAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	var s string
	switch {
	case v >= 1e9:
		s = humanize.FormatFloat("#,###.#", v/1e9) + " B"
	case v >= 1e6:
		s = humanize.FormatFloat("#,###.#", v/1e6) + " M"
	case v >= 1e3:
		s = humanize.FormatFloat("#,###.#", v/1e3) + " K"
	default:
		s = humanize.FormatFloat("#,###.##", v)
	}
	if neg {
		return "-" + s
	}
	return s
}
