// Package params holds named parameter tensors and routines to copy them between models.
package params

import (
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"sort"
)

// Tensor is a dense float32 array with row major layout.
type Tensor struct {
	Dims []int
	Data []float32
}

// Create a new zero filled tensor with the given dimensions.
func NewTensor(dims ...int) *Tensor {
	return &Tensor{Dims: append([]int{}, dims...), Data: make([]float32, Prod(dims))}
}

// Size returns the total number of elements.
func (t *Tensor) Size() int { return len(t.Data) }

// SameShape checks if the dimensions match elementwise.
func (t *Tensor) SameShape(u *Tensor) bool {
	if len(t.Dims) != len(u.Dims) {
		return false
	}
	for i, d := range t.Dims {
		if u.Dims[i] != d {
			return false
		}
	}
	return true
}

// Clone makes a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	u := NewTensor(t.Dims...)
	copy(u.Data, t.Data)
	return u
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%v", t.Dims)
}

// Set holds the parameters for a model keyed by layer name, e.g. "conv1_1/W".
type Set map[string]*Tensor

// Names returns the sorted parameter names.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone makes a deep copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for name, t := range s {
		c[name] = t.Clone()
	}
	return c
}

// Zero resets all values in the set.
func (s Set) Zero() {
	for _, t := range s {
		for i := range t.Data {
			t.Data[i] = 0
		}
	}
}

// ZerosLike creates a new set with the same names and shapes as s and all values zero.
func ZerosLike(s Set) Set {
	z := make(Set, len(s))
	for name, t := range s {
		z[name] = NewTensor(t.Dims...)
	}
	return z
}

// Transfer copies tensors from src to dst where the names match.
// Entries only present in dst keep their current values, entries only in src are
// ignored and matched entries with different shapes are skipped with a warning.
// Returns the number of tensors copied.
func Transfer(src, dst Set) int {
	copied := 0
	for _, name := range src.Names() {
		t, ok := dst[name]
		if !ok {
			continue
		}
		u := src[name]
		if !t.SameShape(u) {
			log.Printf("transfer: skip %s: shape mismatch - have %v want %v", name, u.Dims, t.Dims)
			continue
		}
		copy(t.Data, u.Data)
		copied++
	}
	return copied
}

// Encode the set in gob format.
func (s Set) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(s)
}

// Decode a set from gob format.
func Decode(r io.Reader) (Set, error) {
	var s Set
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return s, nil
}

// Prod returns the product of the dimensions.
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
