package stats

import "math"

// Confusion is an n_class x n_class histogram of ground truth versus predicted
// pixel labels. Pixels with a ground truth label outside [0,n_class) are ignored.
type Confusion struct {
	NClass int
	Hist   []int64
}

// Create a new empty confusion matrix for n classes.
func NewConfusion(n int) *Confusion {
	return &Confusion{NClass: n, Hist: make([]int64, n*n)}
}

// Reset clears the histogram.
func (c *Confusion) Reset() {
	for i := range c.Hist {
		c.Hist[i] = 0
	}
}

// Add accumulates one label map pair. Both slices must be the same length.
func (c *Confusion) Add(lblTrue, lblPred []int32) {
	n := int32(c.NClass)
	for i, lt := range lblTrue {
		if lt < 0 || lt >= n {
			continue
		}
		lp := lblPred[i]
		if lp < 0 || lp >= n {
			continue
		}
		c.Hist[int(lt)*c.NClass+int(lp)]++
	}
}

// Score holds the standard segmentation accuracy statistics.
// Values are NaN where no labelled pixel contributes to the statistic.
type Score struct {
	Acc     float64 // overall pixel accuracy
	AccCls  float64 // mean per class accuracy
	MeanIU  float64 // mean intersection over union
	FwAvAcc float64 // frequency weighted IoU
}

// Score computes the accuracy statistics from the accumulated histogram.
// Classes absent from both prediction and ground truth give NaN entries
// which are excluded from the means.
func (c *Confusion) Score() Score {
	n := c.NClass
	var total, diag int64
	rowSum := make([]int64, n)
	colSum := make([]int64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := c.Hist[i*n+j]
			total += v
			rowSum[i] += v
			colSum[j] += v
			if i == j {
				diag += v
			}
		}
	}
	accCls := make([]float64, n)
	iu := c.IU()
	for i := 0; i < n; i++ {
		accCls[i] = div(float64(c.Hist[i*n+i]), float64(rowSum[i]))
	}
	var s Score
	s.Acc = div(float64(diag), float64(total))
	s.AccCls = nanMean(accCls)
	s.MeanIU = nanMean(iu)
	s.FwAvAcc = math.NaN()
	if total > 0 {
		s.FwAvAcc = 0
		for i := 0; i < n; i++ {
			freq := float64(rowSum[i]) / float64(total)
			if freq > 0 {
				s.FwAvAcc += freq * iu[i]
			}
		}
	}
	return s
}

// IU returns the per class intersection over union, NaN for classes absent
// from both ground truth and prediction.
func (c *Confusion) IU() []float64 {
	n := c.NClass
	iu := make([]float64, n)
	for i := 0; i < n; i++ {
		var row, col int64
		for j := 0; j < n; j++ {
			row += c.Hist[i*n+j]
			col += c.Hist[j*n+i]
		}
		inter := c.Hist[i*n+i]
		iu[i] = div(float64(inter), float64(row+col-inter))
	}
	return iu
}

func div(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return a / b
}

func nanMean(vals []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	return div(sum, float64(n))
}
