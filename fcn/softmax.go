package fcn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ChenXinhao/fcn/params"
)

// SoftmaxModel is a per pixel multinomial logistic regression over the input
// channels. It is the baseline segmentation scorer and the reference
// implementation of the Model interface: convolutional backbones plug in
// behind the same interface.
type SoftmaxModel struct {
	nclass   int
	channels int
	p        params.Set
	g        params.Set
}

// Create a new model for nclass output classes. Weights are initialised
// from a uniform distribution scaled by 1/sqrt(channels), biases to zero.
func NewSoftmaxModel(nclass, channels int, rng *rand.Rand) *SoftmaxModel {
	m := &SoftmaxModel{nclass: nclass, channels: channels}
	w := params.NewTensor(nclass, channels)
	scale := float32(1 / math.Sqrt(float64(channels)))
	for i := range w.Data {
		w.Data[i] = (2*rng.Float32() - 1) * scale
	}
	m.p = params.Set{"score/W": w, "score/b": params.NewTensor(nclass)}
	m.g = params.ZerosLike(m.p)
	return m
}

func (m *SoftmaxModel) Params() params.Set { return m.p }

func (m *SoftmaxModel) Grads() params.Set { return m.g }

// Forward computes the softmax cross entropy loss averaged over the labelled
// pixels and the argmax label map. With the Train phase the parameter
// gradients are accumulated into Grads, with Val the parameters are left
// untouched and no gradients are produced.
func (m *SoftmaxModel) Forward(s Sample, phase Phase) (Result, error) {
	if s.Channels != m.channels {
		return Result{}, fmt.Errorf("model expects %d input channels - got %d", m.channels, s.Channels)
	}
	npix := s.Pixels()
	if len(s.Input) != npix*s.Channels || len(s.Label) != npix {
		return Result{}, fmt.Errorf("sample %s: buffer sizes do not match %dx%d", s.Name, s.Height, s.Width)
	}
	w, b := m.p["score/W"].Data, m.p["score/b"].Data
	var gw, gb []float32
	if phase == Train {
		m.g.Zero()
		gw, gb = m.g["score/W"].Data, m.g["score/b"].Data
	}
	pred := make([]int32, npix)
	logits := make([]float64, m.nclass)
	probs := make([]float64, m.nclass)
	x := make([]float64, m.channels)
	loss, n := 0.0, 0
	for i := 0; i < npix; i++ {
		for ch := 0; ch < m.channels; ch++ {
			x[ch] = float64(s.Input[ch*npix+i])
		}
		maxVal, argmax := math.Inf(-1), 0
		for c := 0; c < m.nclass; c++ {
			z := float64(b[c])
			for ch := 0; ch < m.channels; ch++ {
				z += float64(w[c*m.channels+ch]) * x[ch]
			}
			logits[c] = z
			if z > maxVal {
				maxVal, argmax = z, c
			}
		}
		pred[i] = int32(argmax)
		lt := s.Label[i]
		if lt < 0 || int(lt) >= m.nclass {
			continue
		}
		sum := 0.0
		for c := 0; c < m.nclass; c++ {
			probs[c] = math.Exp(logits[c] - maxVal)
			sum += probs[c]
		}
		for c := 0; c < m.nclass; c++ {
			probs[c] /= sum
		}
		loss -= math.Log(probs[lt])
		n++
		if phase == Train {
			for c := 0; c < m.nclass; c++ {
				d := probs[c]
				if c == int(lt) {
					d -= 1
				}
				for ch := 0; ch < m.channels; ch++ {
					gw[c*m.channels+ch] += float32(d * x[ch])
				}
				gb[c] += float32(d)
			}
		}
	}
	if n == 0 {
		return Result{Loss: math.NaN(), Pred: pred}, nil
	}
	loss /= float64(n)
	if phase == Train {
		inv := float32(1 / float64(n))
		for i := range gw {
			gw[i] *= inv
		}
		for i := range gb {
			gb[i] *= inv
		}
	}
	return Result{Loss: loss, Pred: pred}, nil
}
