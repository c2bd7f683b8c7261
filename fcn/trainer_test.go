package fcn

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path"
	"strings"
	"testing"
)

// in-memory dataset for trainer tests
type memDataset struct {
	classes []string
	splits  map[string][]Sample
}

func (d *memDataset) Classes() []string { return d.classes }

func (d *memDataset) Splits() []string {
	s := make([]string, 0, len(d.splits))
	for key := range d.splits {
		s = append(s, key)
	}
	return s
}

func (d *memDataset) Len(split string) int { return len(d.splits[split]) }

func (d *memDataset) Sample(split string, i int) (Sample, error) {
	return d.splits[split][i], nil
}

// 2x2 single channel sample where the input equals the label value
func testSample(labels ...int32) Sample {
	input := make([]float32, len(labels))
	for i, l := range labels {
		input[i] = float32(l)
	}
	return Sample{Input: input, Label: labels, Channels: 1, Height: 2, Width: 2}
}

func testData() *memDataset {
	return &memDataset{
		classes: []string{"background", "object"},
		splits: map[string][]Sample{
			TrainSplit: {testSample(0, 1, 0, 1), testSample(1, 1, 0, 0)},
			ValSplit:   {testSample(0, 0, 1, 1), testSample(1, 0, 1, 0)},
		},
	}
}

func testConfig(dir string) Config {
	conf := Default()
	conf.OutDir = path.Join(dir, "result")
	conf.Eta = 0.1
	conf.Momentum = 0.9
	conf.Lambda = 0.0005
	conf.RandSeed = 42
	return conf
}

func newTestTrainer(t *testing.T, conf Config, resume string) *Trainer {
	data := testData()
	model := NewSoftmaxModel(len(data.Classes()), 1, rand.New(rand.NewSource(1)))
	opt, err := conf.NewOptimizer()
	if err != nil {
		t.Fatal(err)
	}
	tr, err := NewTrainer(conf, model, opt, data, resume)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTrainValidateLog(t *testing.T) {
	// 2 train samples, validation every iteration: after one iteration there
	// must be exactly one val row and one train row.
	conf := testConfig(t.TempDir())
	conf.MaxIter = 1
	conf.TestInterval = 1
	conf.SnapshotInterval = 0
	tr := newTestTrainer(t, conf, "")
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	tr.Close()
	recs, err := ReadLog(path.Join(conf.OutDir, "log.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expect 2 log rows - got %d", len(recs))
	}
	if recs[0].Phase != Val || recs[0].Iter != 0 {
		t.Errorf("first row should be validation at iter 0 - got %s", recs[0])
	}
	if recs[1].Phase != Train || recs[1].Iter != 0 {
		t.Errorf("second row should be training at iter 0 - got %s", recs[1])
	}
	for _, r := range recs {
		if math.IsNaN(r.Loss) || r.Loss <= 0 {
			t.Errorf("iter %d: unexpected loss %v", r.Iter, r.Loss)
		}
		if r.Acc < 0 || r.Acc > 1 {
			t.Errorf("iter %d: accuracy %v out of range", r.Iter, r.Acc)
		}
	}
}

func TestLossDecreases(t *testing.T) {
	conf := testConfig(t.TempDir())
	conf.MaxIter = 200
	conf.TestInterval = 0
	conf.SnapshotInterval = 0
	conf.Lambda = 0
	tr := newTestTrainer(t, conf, "")
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	tr.Close()
	recs, err := ReadLog(path.Join(conf.OutDir, "log.csv"))
	if err != nil {
		t.Fatal(err)
	}
	first, last := recs[0], recs[len(recs)-1]
	if last.Loss >= first.Loss {
		t.Errorf("loss did not decrease: %v -> %v", first.Loss, last.Loss)
	}
	if last.Acc != 1 {
		t.Errorf("separable data should reach accuracy 1 - got %v", last.Acc)
	}
}

func TestResume(t *testing.T) {
	dir := t.TempDir()
	conf := testConfig(dir)
	conf.MaxIter = 3
	conf.TestInterval = 0
	conf.SnapshotInterval = 2
	tr := newTestTrainer(t, conf, "")
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	tr.Close()

	// resume from the snapshot taken after iteration 2
	snapPath := path.Join(conf.OutDir, SnapshotName(2))
	conf.MaxIter = 5
	tr2 := newTestTrainer(t, conf, snapPath)
	if tr2.Iter() != 3 {
		t.Fatalf("resume should continue at iteration 3 - got %d", tr2.Iter())
	}
	if err := tr2.Run(); err != nil {
		t.Fatal(err)
	}
	tr2.Close()
	recs, err := ReadLog(path.Join(conf.OutDir, "log.csv"))
	if err != nil {
		t.Fatal(err)
	}
	iters := []int{}
	for _, r := range recs {
		iters = append(iters, r.Iter)
	}
	want := []int{0, 1, 2, 3, 4}
	if len(iters) != len(want) {
		t.Fatalf("log rows %v - expect %v", iters, want)
	}
	for i, w := range want {
		if iters[i] != w {
			t.Fatalf("log rows %v - expect %v", iters, want)
		}
	}
}

func TestResumeRestoresParams(t *testing.T) {
	dir := t.TempDir()
	conf := testConfig(dir)
	conf.MaxIter = 3
	conf.TestInterval = 0
	conf.SnapshotInterval = 2
	tr := newTestTrainer(t, conf, "")
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	tr.Close()

	snap, err := LoadSnapshot(path.Join(conf.OutDir, SnapshotName(2)))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Iter != 2 {
		t.Errorf("snapshot iter = %d - expect 2", snap.Iter)
	}
	tr2 := newTestTrainer(t, conf, path.Join(conf.OutDir, SnapshotName(2)))
	defer tr2.Close()
	for name, want := range snap.Params {
		got := tr2.Model.Params()[name]
		for i := range want.Data {
			if got.Data[i] != want.Data[i] {
				t.Fatalf("%s: param mismatch after resume at %d", name, i)
			}
		}
	}
	if _, ok := tr2.Opt.(*MomentumSGD); !ok {
		t.Errorf("optimizer state not restored: %T", tr2.Opt)
	}
}

func TestOutDirExists(t *testing.T) {
	conf := testConfig(t.TempDir())
	if err := os.MkdirAll(conf.OutDir, 0755); err != nil {
		t.Fatal(err)
	}
	data := testData()
	model := NewSoftmaxModel(2, 1, rand.New(rand.NewSource(1)))
	opt, _ := conf.NewOptimizer()
	if _, err := NewTrainer(conf, model, opt, data, ""); err == nil {
		t.Error("expect error when output dir exists without a resume snapshot")
	}
}

func TestEpochLoop(t *testing.T) {
	conf := testConfig(t.TempDir())
	conf.MaxIter = 0
	conf.MaxEpoch = 2
	conf.TestInterval = 1
	conf.SnapshotInterval = 0
	conf.Optimizer = "adam"
	conf.Eta = 0.01
	tr := newTestTrainer(t, conf, "")
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	tr.Close()
	recs, err := ReadLog(path.Join(conf.OutDir, "log.csv"))
	if err != nil {
		t.Fatal(err)
	}
	// 2 epochs x 2 train samples + 2 validation rows
	train, val := 0, 0
	for _, r := range recs {
		if r.Phase == Val {
			val++
		} else {
			train++
		}
	}
	if train != 4 || val != 2 {
		t.Errorf("got %d train and %d val rows - expect 4 and 2", train, val)
	}
}

func TestEmptyTrainSplit(t *testing.T) {
	conf := testConfig(t.TempDir())
	conf.MaxIter = 1
	conf.TestInterval = 0
	conf.SnapshotInterval = 0
	data := testData()
	data.splits[TrainSplit] = nil
	model := NewSoftmaxModel(len(data.Classes()), 1, rand.New(rand.NewSource(1)))
	opt, err := conf.NewOptimizer()
	if err != nil {
		t.Fatal(err)
	}
	tr, err := NewTrainer(conf, model, opt, data, "")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if err := tr.Run(); err == nil {
		t.Error("expect an error when the train split has no samples")
	}
}

func TestDebugOutput(t *testing.T) {
	conf := testConfig(t.TempDir())
	conf.MaxIter = 1
	conf.TestInterval = 1
	conf.SnapshotInterval = 1
	conf.DebugLevel = 2
	tr := newTestTrainer(t, conf, "")

	stdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	runErr := tr.Run()
	tr.Close()
	w.Close()
	os.Stdout = stdout
	if runErr != nil {
		t.Fatal(runErr)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"validate iter 0", "train iter 0", "saved snapshot"} {
		if !strings.Contains(out, want) {
			t.Errorf("debug output missing %q:\n%s", want, out)
		}
	}
}

func TestWeightDecay(t *testing.T) {
	model := NewSoftmaxModel(2, 1, rand.New(rand.NewSource(1)))
	p := model.Params()
	g := model.Grads()
	w0 := p["score/W"].Data[0]
	addWeightDecay(p, g, 0.5)
	if got := g["score/W"].Data[0]; got != 0.5*w0 {
		t.Errorf("decay gradient = %v - expect %v", got, 0.5*w0)
	}
}
