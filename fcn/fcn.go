// Package fcn contains routines for training and evaluating pixel wise
// semantic segmentation models.
package fcn

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/ChenXinhao/fcn/params"
)

// Label value for pixels excluded from the loss and all accuracy statistics.
const IgnoreLabel int32 = -1

// Dataset split names used by the trainer.
const (
	TrainSplit = "train"
	ValSplit   = "val"
)

// Phase selects between training and validation behaviour for a forward pass.
// It is passed explicitly into each call so there is no mode flag to restore.
type Phase int

const (
	Train Phase = iota
	Val
)

func (p Phase) String() string {
	if p == Val {
		return "val"
	}
	return "train"
}

// Sample is one image with its per pixel ground truth labels.
// Input holds Channels planes of Height*Width values, Label is Height*Width
// class ids with IgnoreLabel for unlabelled pixels.
type Sample struct {
	Name     string
	Input    []float32
	Label    []int32
	Channels int
	Height   int
	Width    int
}

// Pixels returns the number of pixels per channel plane.
func (s Sample) Pixels() int { return s.Height * s.Width }

// Result of a single forward pass.
type Result struct {
	Loss float64
	Pred []int32
}

// Model is the capability the trainer needs from a segmentation network.
// Forward computes the loss and predicted label map for one sample and, when
// called with the Train phase, leaves the parameter gradients in Grads.
type Model interface {
	Forward(s Sample, phase Phase) (Result, error)
	Params() params.Set
	Grads() params.Set
}

// Optimizer applies one gradient descent update to the parameter set.
type Optimizer interface {
	Step(p, g params.Set)
}

// Dataset yields samples for each named split. Splits are loaded once and
// read only, so Sample may be called in any order.
type Dataset interface {
	Classes() []string
	Splits() []string
	Len(split string) int
	Sample(split string, i int) (Sample, error)
}

// Reporter is notified of each training or validation record.
type Reporter interface {
	Report(r Record)
}

// Set random number seed, or seed from the clock if seed <= 0.
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
		fmt.Println("random seed =", seed)
	}
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
