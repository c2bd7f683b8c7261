package fcn

import (
	"encoding/gob"
	"math"

	"github.com/ChenXinhao/fcn/params"
)

func init() {
	gob.Register(&MomentumSGD{})
	gob.Register(&Adam{})
}

// MomentumSGD is classical momentum gradient descent.
type MomentumSGD struct {
	LR       float64
	Momentum float64
	V        params.Set
}

func NewMomentumSGD(lr, momentum float64) *MomentumSGD {
	return &MomentumSGD{LR: lr, Momentum: momentum, V: params.Set{}}
}

func (o *MomentumSGD) Step(p, g params.Set) {
	for name, grad := range g {
		w, ok := p[name]
		if !ok {
			continue
		}
		v, ok := o.V[name]
		if !ok {
			v = params.NewTensor(w.Dims...)
			o.V[name] = v
		}
		for i, gv := range grad.Data {
			v.Data[i] = float32(o.Momentum*float64(v.Data[i]) - o.LR*float64(gv))
			w.Data[i] += v.Data[i]
		}
	}
}

// Adam update rule with bias corrected first and second moments.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
	T     int
	M     params.Set
	V     params.Set
}

func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, M: params.Set{}, V: params.Set{}}
}

func (o *Adam) Step(p, g params.Set) {
	o.T++
	c1 := 1 - math.Pow(o.Beta1, float64(o.T))
	c2 := 1 - math.Pow(o.Beta2, float64(o.T))
	for name, grad := range g {
		w, ok := p[name]
		if !ok {
			continue
		}
		m, ok := o.M[name]
		if !ok {
			m = params.NewTensor(w.Dims...)
			o.M[name] = m
			o.V[name] = params.NewTensor(w.Dims...)
		}
		v := o.V[name]
		for i, gval := range grad.Data {
			gv := float64(gval)
			mt := o.Beta1*float64(m.Data[i]) + (1-o.Beta1)*gv
			vt := o.Beta2*float64(v.Data[i]) + (1-o.Beta2)*gv*gv
			m.Data[i], v.Data[i] = float32(mt), float32(vt)
			w.Data[i] -= float32(o.LR * (mt / c1) / (math.Sqrt(vt/c2) + o.Eps))
		}
	}
}
