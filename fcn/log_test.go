package fcn

import (
	"math"
	"path"
	"testing"
)

func TestLogRoundTrip(t *testing.T) {
	file := path.Join(t.TempDir(), "log.csv")
	l, err := NewLogger(file, false)
	if err != nil {
		t.Fatal(err)
	}
	recs := []Record{
		{Iter: 0, Phase: Train, Loss: 3.0445, Acc: 0.25, AccCls: 0.5, MeanIU: 0.125, FwAvAcc: 0.2},
		{Iter: 0, Phase: Val, Loss: 2.5, Acc: math.NaN(), AccCls: math.NaN(), MeanIU: math.NaN(), FwAvAcc: math.NaN()},
	}
	for _, r := range recs {
		if err = l.Append(r); err != nil {
			t.Fatal(err)
		}
	}
	l.Close()
	got, err := ReadLog(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d records - expect 2", len(got))
	}
	if got[0] != recs[0] {
		t.Errorf("record 0: got %+v want %+v", got[0], recs[0])
	}
	if got[1].Phase != Val || !math.IsNaN(got[1].Acc) {
		t.Errorf("NaN metrics should survive the round trip - got %+v", got[1])
	}
}

func TestLoggerAppendMode(t *testing.T) {
	file := path.Join(t.TempDir(), "log.csv")
	l, err := NewLogger(file, false)
	if err != nil {
		t.Fatal(err)
	}
	l.Append(Record{Iter: 0, Phase: Train, Loss: 1})
	l.Close()
	l, err = NewLogger(file, true)
	if err != nil {
		t.Fatal(err)
	}
	l.Append(Record{Iter: 1, Phase: Train, Loss: 0.5})
	l.Close()
	got, err := ReadLog(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Iter != 1 {
		t.Errorf("append mode should keep existing rows - got %+v", got)
	}
}

func TestLoggerResumeMissingFile(t *testing.T) {
	// reopening in append mode when the log was removed must still write the
	// header so the first data row is not parsed as one
	file := path.Join(t.TempDir(), "log.csv")
	l, err := NewLogger(file, true)
	if err != nil {
		t.Fatal(err)
	}
	l.Append(Record{Iter: 5, Phase: Train, Loss: 0.5})
	l.Close()
	got, err := ReadLog(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Iter != 5 {
		t.Errorf("expect 1 record with iter 5 - got %+v", got)
	}
}

func TestConfigSetString(t *testing.T) {
	conf := Default()
	conf, err := conf.SetString("Eta", "0.01")
	if err != nil || conf.Eta != 0.01 {
		t.Errorf("SetString Eta: %v %v", conf.Eta, err)
	}
	conf, err = conf.SetString("MaxIter", "500")
	if err != nil || conf.MaxIter != 500 {
		t.Errorf("SetString MaxIter: %v %v", conf.MaxIter, err)
	}
	conf, err = conf.SetString("Optimizer", "adam")
	if err != nil || conf.Optimizer != "adam" {
		t.Errorf("SetString Optimizer: %v %v", conf.Optimizer, err)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	file := path.Join(t.TempDir(), "train.conf")
	conf := Default()
	conf.Eta = 0.05
	conf.MaxIter = 123
	if err := conf.Save(file); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(file)
	if err != nil {
		t.Fatal(err)
	}
	if got != conf {
		t.Errorf("config mismatch:\n%s\n%s", got, conf)
	}
}
