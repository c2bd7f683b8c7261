package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ChenXinhao/fcn/fcn"
	"github.com/ChenXinhao/fcn/stats"
	"github.com/gorilla/websocket"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// TrainPage serves the stats and plots for the training log file. The log is
// append only so the page just rereads it when it grows.
type TrainPage struct {
	*Templates
	logPath string
	recs    []fcn.Record
	size    int64
	conns   []*websocket.Conn
	sync.Mutex
}

// Base data for handler functions to display the training stats
func NewTrainPage(t *Templates, logPath string) *TrainPage {
	return &TrainPage{Templates: t.Select("/train"), logPath: logPath}
}

// Handler function for the train template
func (p *TrainPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Lock()
		defer p.Unlock()
		p.refresh()
		if err := p.ExecuteTemplate(w, "train", p); err != nil {
			logError(w, err)
		}
	}
}

// Handler function for the stats frame
func (p *TrainPage) Stats() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Lock()
		defer p.Unlock()
		p.refresh()
		if err := p.ExecuteTemplate(w, "stats", p); err != nil {
			logError(w, err)
		}
	}
}

// Handler function for websocket connection
func (p *TrainPage) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logError(w, err)
			return
		}
		p.Lock()
		p.conns = append(p.conns, conn)
		p.Unlock()
	}
}

// Watch polls the log file and notifies connected clients when it grows.
func (p *TrainPage) Watch(interval time.Duration) {
	go func() {
		for range time.Tick(interval) {
			info, err := os.Stat(p.logPath)
			if err != nil {
				continue
			}
			p.Lock()
			if info.Size() != p.size {
				p.size = info.Size()
				p.refresh()
				p.notify()
			}
			p.Unlock()
		}
	}()
}

func (p *TrainPage) refresh() {
	recs, err := fcn.ReadLog(p.logPath)
	if err != nil {
		log.Println("error reading log:", err)
		return
	}
	p.recs = recs
}

func (p *TrainPage) notify() {
	conns := p.conns[:0]
	for _, conn := range p.conns {
		msg := []byte(fmt.Sprint(len(p.recs)))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			continue
		}
		conns = append(conns, conn)
	}
	p.conns = conns
}

func (p *TrainPage) Heading() template.HTML {
	iter := 0
	if len(p.recs) > 0 {
		iter = p.recs[len(p.recs)-1].Iter
	}
	return template.HTML(fmt.Sprintf(`iteration <span id="iter">%d</span>`, iter))
}

func (p *TrainPage) Headers() []string {
	return []string{"iter", "type", "loss", "acc", "acc_cls", "iu", "fwavacc"}
}

// LatestRecords returns up to n most recent log records, newest first.
func (p *TrainPage) LatestRecords(n int) []fcn.Record {
	res := []fcn.Record{}
	for i := len(p.recs) - 1; i >= 0 && i > len(p.recs)-1-n; i-- {
		res = append(res, p.recs[i])
	}
	return res
}

// Summary returns mean and spread over all validation records per metric.
func (p *TrainPage) Summary() []Metric {
	names := []string{"loss", "acc", "acc_cls", "iu", "fwavacc"}
	avgs := make([]stats.Average, len(names))
	for _, r := range p.recs {
		if r.Phase != fcn.Val {
			continue
		}
		for i, v := range []float64{r.Loss, r.Acc, r.AccCls, r.MeanIU, r.FwAvAcc} {
			avgs[i].Add(v)
		}
	}
	if avgs[0].Count == 0 {
		return nil
	}
	m := make([]Metric, len(names))
	for i, name := range names {
		m[i] = Metric{Name: name, Value: avgs[i].HTML()}
	}
	return m
}

// Metric is one validation summary table cell.
type Metric struct {
	Name  string
	Value template.HTML
}

func (p *TrainPage) LossPlot(width, height int) template.HTML {
	plt := newPlot()
	loss := func(r fcn.Record) float64 { return r.Loss }
	for i, phase := range []fcn.Phase{fcn.Train, fcn.Val} {
		line := newLinePlot(p.recs, phase, loss, 1, i)
		plt.Add(line)
		plt.Legend.Add(phase.String()+" loss ", line)
	}
	avg := newLinePlot(smoothLoss(p.recs, 20), fcn.Train, loss, 1, 2)
	plt.Add(avg)
	plt.Legend.Add("train avg ", avg)
	return writePlot(plt, width, height)
}

// exponential moving average of the train loss with the given window to
// smooth out the per sample noise
func smoothLoss(recs []fcn.Record, window float64) []fcn.Record {
	var out []fcn.Record
	var ema stats.EMA
	for _, r := range recs {
		if r.Phase != fcn.Train || math.IsNaN(r.Loss) {
			continue
		}
		ema = stats.EMA(ema.Add(r.Loss, window))
		r.Loss = float64(ema)
		out = append(out, r)
	}
	return out
}

func (p *TrainPage) MetricPlot(width, height int) template.HTML {
	plt := newPlot()
	metrics := []struct {
		name string
		get  func(fcn.Record) float64
	}{
		{"acc", func(r fcn.Record) float64 { return r.Acc }},
		{"acc_cls", func(r fcn.Record) float64 { return r.AccCls }},
		{"iu", func(r fcn.Record) float64 { return r.MeanIU }},
		{"fwavacc", func(r fcn.Record) float64 { return r.FwAvAcc }},
	}
	for i, m := range metrics {
		line := newLinePlot(p.recs, fcn.Val, m.get, 100, i)
		plt.Add(line)
		plt.Legend.Add(m.name+" % ", line)
	}
	return writePlot(plt, width, height)
}

func newPlot() *plot.Plot {
	p, err := plot.New()
	if err != nil {
		log.Fatal("Plot error: ", err)
	}
	fontSmall := newFont(10)
	fontMedium := newFont(12)
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font = fontSmall
	p.Y.Tick.Label.Font = fontSmall
	p.Legend.Top = true
	p.Legend.Font = fontMedium
	p.Add(plotter.NewGrid())
	return p
}

// render the plot as inline svg with the canvas sized in inches
func writePlot(p *plot.Plot, w, h int) template.HTML {
	var buf bytes.Buffer
	writer, err := p.WriterTo(vg.Inch*vg.Length(w), vg.Inch*vg.Length(h), "svg")
	if err != nil {
		log.Fatal("Error writing plot: ", err)
	}
	writer.WriteTo(&buf)
	return template.HTML(buf.String())
}

func newFont(size vg.Length) vg.Font {
	font, err := vg.MakeFont("Helvetica", size)
	if err != nil {
		log.Fatal("Plot: failed loading font", err)
	}
	return font
}

func newLinePlot(recs []fcn.Record, phase fcn.Phase, get func(fcn.Record) float64, scale float64, ix int) linePlot {
	var pt struct{ X, Y float64 }
	var pts plotter.XYs
	xmax, ymax := 1.0, 0.0
	for _, r := range recs {
		if r.Phase != phase {
			continue
		}
		y := get(r)
		if math.IsNaN(y) {
			continue
		}
		pt.X, pt.Y = float64(r.Iter), y*scale
		pts = append(pts, pt)
		if pt.X > xmax {
			xmax = pt.X
		}
		if pt.Y > ymax {
			ymax = pt.Y
		}
	}
	l, _ := plotter.NewLine(pts)
	l.Width = 2
	l.Color = plotutil.Color(ix)
	return linePlot{Line: l, xmin: 0, xmax: xmax, ymin: 0, ymax: ymax}
}

// modified plotter.Line with a fixed scale
type linePlot struct {
	*plotter.Line
	xmin, xmax, ymin, ymax float64
}

func (l linePlot) DataRange() (xmin, xmax, ymin, ymax float64) {
	return l.xmin, l.xmax, l.ymin, l.ymax
}
