// Package chart renders the top/bottom spending bar chart as a PNG.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"spending/internal/core"
	"spending/internal/log"
)

const (
	maxLabelLen = 40
	dpi         = 100
)

var (
	topColor    = color.RGBA{R: 0xff, A: 0xff}
	bottomColor = color.RGBA{B: 0xff, A: 0xff}
)

// Renderer writes one chart per period into a static directory.
// Rendering the same period again replaces the file in place.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
}

// NewRenderer returns a renderer writing 1400x800 px images into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir, width: 14 * vg.Inch, height: 8 * vg.Inch}
}

// FileName returns the artifact name for p.
func FileName(p core.Period) string {
	return "spending_chart_" + p.Key() + ".png"
}

// Render draws both panels and writes the image, returning its file name.
// When the data cannot be plotted an empty placeholder chart is written instead.
func (r *Renderer) Render(rk core.Rankings, p core.Period) (string, error) {
	img, err := r.draw(rk)
	if err != nil {
		slog.Warn("Chart rendering failed, writing placeholder", log.FieldComponent, log.ComponentChart, "period", p.Key(), log.FieldError, err)
		img, err = r.draw(core.Rankings{Size: rk.Size})
		if err != nil {
			return "", fmt.Errorf("render placeholder chart: %w", err)
		}
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	name := FileName(p)
	if err := writeFile(filepath.Join(r.dir, name), img); err != nil {
		return "", err
	}
	return name, nil
}

func (r *Renderer) draw(rk core.Rankings) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plot panicked: %v", rec)
		}
	}()

	left, err := panel(rk.TopTitle(), rk.Top, topColor)
	if err != nil {
		return nil, err
	}
	right, err := panel(rk.BottomTitle(), rk.Bottom, bottomColor)
	if err != nil {
		return nil, err
	}

	canvas := vgimg.NewWith(vgimg.UseWH(r.width, r.height), vgimg.UseDPI(dpi))
	dc := draw.New(canvas)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Points(30),
		PadTop:    vg.Points(20),
		PadBottom: vg.Points(10),
		PadLeft:   vg.Points(10),
		PadRight:  vg.Points(20),
	}
	plots := [][]*plot.Plot{{left, right}}
	canvases := plot.Align(plots, tiles, dc)
	left.Draw(canvases[0][0])
	right.Draw(canvases[0][1])

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func panel(title string, entries []core.Entry, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Name"
	p.Y.Label.Text = "Total Spending"
	p.Y.Tick.Marker = plot.TickerFunc(plainTicks)

	if len(entries) == 0 {
		p.Title.Text = title + " (no data)"
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
		p.HideX()
		return p, nil
	}

	values := make(plotter.Values, len(entries))
	names := make([]string, len(entries))
	for i, e := range entries {
		if math.IsNaN(e.Total) || math.IsInf(e.Total, 0) {
			return nil, fmt.Errorf("entry %q has non-finite total", e.Name)
		}
		values[i] = e.Total
		names[i] = shorten(e.Name)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return nil, fmt.Errorf("bar chart %q: %w", title, err)
	}
	bars.Color = c
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)

	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	return p, nil
}

// plainTicks labels the value axis without scientific notation.
func plainTicks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = humanizeAmount(ticks[i].Value)
		}
	}
	return ticks
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= maxLabelLen {
		return s
	}
	return string(r[:maxLabelLen-1]) + "…"
}

func writeFile(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write chart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close chart file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod chart file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename chart file: %w", err)
	}
	return nil
}
