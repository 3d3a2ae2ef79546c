// Package plot renders publication-style figures to image files: XY line
// plots, amplitude spectra, and filled contour views of 2D fields.
package plot

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/chenyongxin/mytools/internal/grid"
)

// Config carries the figure settings shared by all plot kinds.  The zero
// value renders a 6x4 inch untitled figure.
type Config struct {
	Title  string
	XLabel string
	YLabel string
	// Width and Height are in inches.  Zero selects 6x4.
	Width, Height float64
}

func (c Config) size() (w, h vg.Length) {
	if c.Width <= 0 {
		c.Width = 6
	}
	if c.Height <= 0 {
		c.Height = 4
	}
	return vg.Length(c.Width) * vg.Inch, vg.Length(c.Height) * vg.Inch
}

func (c Config) apply(p *plot.Plot) {
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
}

// Line is one labelled curve of an XY plot.
type Line struct {
	Label string
	X, Y  []float64
}

// XY renders one or more curves to the image file at path.  The format
// follows the file extension (.png, .pdf, .svg, ...).
func XY(path string, cfg Config, lines ...Line) error {
	if len(lines) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	p := plot.New()
	cfg.apply(p)

	args := make([]interface{}, 0, 2*len(lines))
	for _, l := range lines {
		if len(l.X) != len(l.Y) {
			return fmt.Errorf("curve %q: %d x values but %d y values", l.Label, len(l.X), len(l.Y))
		}
		xys := make(plotter.XYs, len(l.X))
		for i := range xys {
			xys[i].X, xys[i].Y = l.X[i], l.Y[i]
		}
		if l.Label != "" {
			args = append(args, l.Label)
		}
		args = append(args, xys)
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return fmt.Errorf("unable to add curves: %w", err)
	}

	w, h := cfg.size()
	return p.Save(w, h, path)
}

// Spectrum renders a single-sided spectrum as an XY plot with spectral axis
// labels unless the config overrides them.
func Spectrum(path string, cfg Config, freq, amp []float64) error {
	if cfg.XLabel == "" {
		cfg.XLabel = "Frequency"
	}
	if cfg.YLabel == "" {
		cfg.YLabel = "Amplitude"
	}
	return XY(path, cfg, Line{X: freq, Y: amp})
}

// ContourConfig extends Config with the contour-specific settings.
type ContourConfig struct {
	Config
	// XLim and YLim clip the plotted region to (min, max) when non-nil.
	XLim, YLim *[2]float64
	// Range fixes the color range.  When nil the data range is used.
	Range *[2]float64
	// Intervals is the number of color levels.  Zero selects 100.
	Intervals int
}

// Contour renders a 2D scalar field over rectilinear coordinates as a filled
// heat map using a diverging blue-red color map.
func Contour(path string, cfg ContourConfig, x, y []float64, f *grid.Array) error {
	dims := f.Dims()
	if len(dims) != 2 || dims[0] != len(x) || dims[1] != len(y) {
		return fmt.Errorf("field dimensions %v do not match %dx%d coordinates", dims, len(x), len(y))
	}

	xs, xidx := clipAxis(x, cfg.XLim)
	ys, yidx := clipAxis(y, cfg.YLim)
	if len(xs) == 0 || len(ys) == 0 {
		return fmt.Errorf("clip limits leave no points to plot")
	}

	g := &fieldGrid{x: xs, y: ys}
	g.z = make([][]float64, len(xs))
	lo, hi := f.At(xidx[0], yidx[0]), f.At(xidx[0], yidx[0])
	for i, xi := range xidx {
		g.z[i] = make([]float64, len(ys))
		for j, yj := range yidx {
			v := f.At(xi, yj)
			g.z[i][j] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if cfg.Range != nil {
		lo, hi = cfg.Range[0], cfg.Range[1]
	}
	if hi <= lo {
		hi = lo + 1
	}

	intervals := cfg.Intervals
	if intervals <= 0 {
		intervals = 100
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)

	p := plot.New()
	cfg.apply(p)
	p.Add(plotter.NewHeatMap(g, cm.Palette(intervals)))

	w, h := cfg.size()
	return p.Save(w, h, path)
}

// clipAxis applies an exclusive (min, max) window, returning the kept values
// and their original indices.
func clipAxis(vals []float64, lim *[2]float64) (kept []float64, idx []int) {
	for i, v := range vals {
		if lim != nil && (v <= lim[0] || v >= lim[1]) {
			continue
		}
		kept = append(kept, v)
		idx = append(idx, i)
	}
	return kept, idx
}

// fieldGrid adapts a clipped field to the heat map's grid interface.
type fieldGrid struct {
	x, y []float64
	z    [][]float64
}

func (g *fieldGrid) Dims() (int, int)   { return len(g.x), len(g.y) }
func (g *fieldGrid) X(c int) float64    { return g.x[c] }
func (g *fieldGrid) Y(r int) float64    { return g.y[r] }
func (g *fieldGrid) Z(c, r int) float64 { return g.z[c][r] }
