package fcn

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path"

	"github.com/ChenXinhao/fcn/params"
	"github.com/ChenXinhao/fcn/stats"
)

// Trainer drives the training loop: it fetches one sample at a time from the
// train split, runs the forward and backward pass via the Model, applies
// weight decay and the optimizer update, scores the prediction and appends a
// log record. Every TestInterval iterations the whole validation split is
// evaluated without parameter updates and every SnapshotInterval iterations
// the model and optimizer state are saved to the output directory.
type Trainer struct {
	Conf      Config
	Model     Model
	Opt       Optimizer
	Data      Dataset
	nclass    int
	rng       *rand.Rand
	logger    *Logger
	reporters []Reporter
	iter      int
	order     []int
	pos       int
}

// Create a new trainer writing to Conf.OutDir. With an empty resume path the
// output directory must not already exist, otherwise the snapshot file is
// loaded, the model parameters and optimizer state are restored and training
// continues at the following iteration with the log file opened in append mode.
func NewTrainer(conf Config, model Model, opt Optimizer, data Dataset, resume string) (*Trainer, error) {
	t := &Trainer{Conf: conf, Model: model, Opt: opt, Data: data,
		nclass: len(data.Classes()), rng: SetSeed(conf.RandSeed)}
	if resume == "" {
		if _, err := os.Stat(conf.OutDir); err == nil {
			return nil, fmt.Errorf("output dir already exists: %s", conf.OutDir)
		}
	} else {
		snap, err := LoadSnapshot(resume)
		if err != nil {
			return nil, err
		}
		if n := params.Transfer(snap.Params, model.Params()); n != len(model.Params()) {
			return nil, fmt.Errorf("resume %s: restored %d of %d parameter tensors", resume, n, len(model.Params()))
		}
		if snap.Opt != nil {
			t.Opt = snap.Opt
		}
		t.iter = snap.Iter + 1
	}
	if err := os.MkdirAll(conf.OutDir, 0755); err != nil {
		return nil, err
	}
	logger, err := NewLogger(path.Join(conf.OutDir, "log.csv"), resume != "")
	if err != nil {
		return nil, err
	}
	t.logger = logger
	return t, nil
}

// AddReporter registers an extra sink for log records, e.g. stdout printing
// or the web dashboard broadcast.
func (t *Trainer) AddReporter(r Reporter) {
	t.reporters = append(t.reporters, r)
}

// Iter returns the next iteration number to run.
func (t *Trainer) Iter() int { return t.iter }

// Close the log file.
func (t *Trainer) Close() error { return t.logger.Close() }

// Run the training loop until MaxIter iterations, or MaxEpoch passes over the
// train split if MaxEpoch is set. I/O and forward pass errors are returned
// immediately: there is no retry or partial recovery.
func (t *Trainer) Run() error {
	if t.Conf.MaxEpoch > 0 {
		return t.runEpochs()
	}
	if t.Data.Len(TrainSplit) == 0 {
		return fmt.Errorf("train split is empty")
	}
	for i := t.iter; i < t.Conf.MaxIter; i++ {
		if t.Conf.TestInterval > 0 && i%t.Conf.TestInterval == 0 {
			if err := t.Validate(i); err != nil {
				return err
			}
		}
		if err := t.step(i, t.nextIndex()); err != nil {
			return err
		}
		if t.Conf.SnapshotInterval > 0 && i%t.Conf.SnapshotInterval == 0 {
			if err := t.Snapshot(i); err != nil {
				return err
			}
		}
		t.iter = i + 1
	}
	return nil
}

// Epoch based variant of the loop: TestInterval and SnapshotInterval are in
// units of epochs and validation runs after each matching epoch.
func (t *Trainer) runEpochs() error {
	n := t.Data.Len(TrainSplit)
	if n == 0 {
		return fmt.Errorf("train split is empty")
	}
	for epoch := t.iter / n; epoch < t.Conf.MaxEpoch; epoch++ {
		for _, ix := range t.rng.Perm(n) {
			if err := t.step(t.iter, ix); err != nil {
				return err
			}
			t.iter++
		}
		if t.Conf.TestInterval > 0 && (epoch+1)%t.Conf.TestInterval == 0 {
			if err := t.Validate(t.iter - 1); err != nil {
				return err
			}
		}
		if t.Conf.SnapshotInterval > 0 && (epoch+1)%t.Conf.SnapshotInterval == 0 {
			if err := t.Snapshot(t.iter - 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Perform one training iteration on train sample ix.
func (t *Trainer) step(i, ix int) error {
	s, err := t.Data.Sample(TrainSplit, ix)
	if err != nil {
		return err
	}
	res, err := t.Model.Forward(s, Train)
	if err != nil {
		return err
	}
	if t.Conf.DebugLevel >= 2 {
		fmt.Printf("== train iter %d: sample %d %s loss=%g ==\n", i, ix, s.Name, res.Loss)
	}
	grads := t.Model.Grads()
	if t.Conf.Lambda != 0 {
		addWeightDecay(t.Model.Params(), grads, t.Conf.Lambda)
	}
	t.Opt.Step(t.Model.Params(), grads)
	sc := t.score(s, res)
	return t.report(Record{Iter: i, Phase: Train, Loss: res.Loss,
		Acc: sc.Acc, AccCls: sc.AccCls, MeanIU: sc.MeanIU, FwAvAcc: sc.FwAvAcc})
}

// Validate evaluates the whole validation split without parameter updates and
// appends a single record with the metrics averaged over the samples.
func (t *Trainer) Validate(i int) error {
	n := t.Data.Len(ValSplit)
	if n == 0 {
		return nil
	}
	if t.Conf.DebugLevel >= 1 {
		fmt.Printf("== validate iter %d: %d samples ==\n", i, n)
	}
	var loss, acc, accCls, meanIU, fwAvAcc stats.Average
	for j := 0; j < n; j++ {
		s, err := t.Data.Sample(ValSplit, j)
		if err != nil {
			return err
		}
		res, err := t.Model.Forward(s, Val)
		if err != nil {
			return err
		}
		sc := t.score(s, res)
		loss.Add(res.Loss)
		acc.Add(sc.Acc)
		accCls.Add(sc.AccCls)
		meanIU.Add(sc.MeanIU)
		fwAvAcc.Add(sc.FwAvAcc)
	}
	return t.report(Record{Iter: i, Phase: Val, Loss: mean(loss),
		Acc: mean(acc), AccCls: mean(accCls), MeanIU: mean(meanIU), FwAvAcc: mean(fwAvAcc)})
}

// Snapshot saves the model parameters and optimizer state at iteration i.
func (t *Trainer) Snapshot(i int) error {
	file, err := SaveSnapshot(t.Conf.OutDir, Snapshot{Iter: i, Params: t.Model.Params().Clone(), Opt: t.Opt})
	if err == nil && t.Conf.DebugLevel >= 1 {
		fmt.Println("saved snapshot to", file)
	}
	return err
}

func (t *Trainer) score(s Sample, res Result) stats.Score {
	c := stats.NewConfusion(t.nclass)
	c.Add(s.Label, res.Pred)
	return c.Score()
}

func (t *Trainer) report(r Record) error {
	if err := t.logger.Append(r); err != nil {
		return err
	}
	for _, rep := range t.reporters {
		rep.Report(r)
	}
	return nil
}

// next train sample index from a shuffled pass over the split
func (t *Trainer) nextIndex() int {
	if t.pos >= len(t.order) {
		t.order = t.rng.Perm(t.Data.Len(TrainSplit))
		t.pos = 0
	}
	ix := t.order[t.pos]
	t.pos++
	return ix
}

// add rate * w to the gradient for each parameter tensor
func addWeightDecay(p, g params.Set, rate float64) {
	for name, grad := range g {
		w, ok := p[name]
		if !ok {
			continue
		}
		for i := range grad.Data {
			grad.Data[i] += float32(rate) * w.Data[i]
		}
	}
}

func mean(a stats.Average) float64 {
	if a.Count == 0 {
		return math.NaN()
	}
	return a.Mean
}
