// Package viz serves live RSSI plots of the transmitters the receiver hears,
// together with receiver counters.
package viz

import (
	"bytes"
	"image/color"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
)

type ImageContainer struct {
	name string
	data []byte
}

// Summary describes the signal of one transmitter.
type Summary struct {
	MAC        string    `json:"mac"`
	Tech       dri.Tech  `json:"tech"`
	Samples    int       `json:"samples"`
	RSSIMean   float64   `json:"rssi_mean"`
	RSSIStdDev float64   `json:"rssi_stddev"`
	LastSeen   time.Time `json:"last_seen"`
}

// RSSIPlotter keeps the most recent RSSI readings of one transmitter.
type RSSIPlotter struct {
	mu    sync.Mutex
	name  string
	size  int
	tech  dri.Tech
	times []time.Time
	rssi  []float64
}

func NewRSSIPlotter(name string, size int) *RSSIPlotter {
	return &RSSIPlotter{
		name: name,
		size: size,
	}
}

func (tp *RSSIPlotter) Name() string {
	return tp.name
}

func (tp *RSSIPlotter) Append(rec *dri.Record) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	tp.tech = rec.Tech
	tp.times = append(tp.times, rec.ReceivedAt)
	tp.rssi = append(tp.rssi, float64(rec.RSSI))

	if len(tp.rssi) > tp.size {
		tp.times = tp.times[len(tp.times)-tp.size:]
		tp.rssi = tp.rssi[len(tp.rssi)-tp.size:]
	}
}

func (tp *RSSIPlotter) Summary() Summary {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	s := Summary{MAC: tp.name, Tech: tp.tech, Samples: len(tp.rssi)}
	if len(tp.rssi) == 0 {
		return s
	}
	s.RSSIMean, s.RSSIStdDev = stat.MeanStdDev(tp.rssi, nil)
	s.LastSeen = tp.times[len(tp.times)-1]
	return s
}

// GetImage plots RSSI over the seconds before the latest reading. It returns
// nil until there is something to plot.
func (tp *RSSIPlotter) GetImage() *ImageContainer {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if len(tp.rssi) == 0 {
		return nil
	}

	p := darkPlot(tp.name+" "+string(tp.tech), "t (s)", "RSSI (dBm)")
	p.Y.Min = -110
	p.Y.Max = -20

	p.Add(plotter.NewGrid())

	last := tp.times[len(tp.times)-1]
	pts := make(plotter.XYs, len(tp.rssi))
	for i := range tp.rssi {
		pts[i] = plotter.XY{X: tp.times[i].Sub(last).Seconds(), Y: tp.rssi[i]}
	}
	if err := plotutil.AddLinePoints(p, "rssi", pts); err != nil {
		return nil
	}

	var imageData bytes.Buffer
	w, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil
	}
	if _, err := w.WriteTo(&imageData); err != nil {
		return nil
	}
	return &ImageContainer{name: tp.name, data: imageData.Bytes()}
}

// darkPlot returns a plot drawn white on black, matching the /view page.
func darkPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.Text = title
	p.Title.TextStyle.Color = color.White
	p.Legend.TextStyle.Color = color.White

	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Color = color.White
		axis.Label.TextStyle.Color = color.White
		axis.Tick.Color = color.White
		axis.Tick.Label.Color = color.White
	}
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}
