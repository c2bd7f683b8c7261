package params

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomSet(rng *rand.Rand) Set {
	s := Set{
		"conv1_1/W": NewTensor(64, 3, 3, 3),
		"conv1_1/b": NewTensor(64),
		"fc6/W":     NewTensor(4096, 512),
	}
	for _, t := range s {
		for i := range t.Data {
			t.Data[i] = rng.Float32()
		}
	}
	return s
}

func TestTransfer(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	src := randomSet(rng)
	dst := ZerosLike(src)
	if n := Transfer(src, dst); n != 3 {
		t.Errorf("copied %d tensors - expect 3", n)
	}
	for name, u := range src {
		for i, v := range u.Data {
			if dst[name].Data[i] != v {
				t.Fatalf("%s: data mismatch at %d", name, i)
			}
		}
	}
}

func TestTransferSkips(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	src := randomSet(rng)
	dst := Set{
		"conv1_1/W": NewTensor(64, 3, 3, 3),
		"fc6/W":     NewTensor(21, 512), // shape differs: must be skipped
		"score/W":   NewTensor(21, 4096),
	}
	dst["score/W"].Data[0] = 3.5
	if n := Transfer(src, dst); n != 1 {
		t.Errorf("copied %d tensors - expect 1", n)
	}
	for _, v := range dst["fc6/W"].Data {
		if v != 0 {
			t.Error("fc6/W should be untouched on shape mismatch")
			break
		}
	}
	if dst["score/W"].Data[0] != 3.5 {
		t.Error("score/W only exists in target and should keep its value")
	}
}

func TestEncodeDecode(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	src := randomSet(rng)
	var buf bytes.Buffer
	if err := src.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	dst, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(dst) != len(src) {
		t.Fatalf("decoded %d tensors - expect %d", len(dst), len(src))
	}
	for name, u := range src {
		v, ok := dst[name]
		if !ok || !u.SameShape(v) {
			t.Fatalf("%s: missing or wrong shape", name)
		}
		for i := range u.Data {
			if u.Data[i] != v.Data[i] {
				t.Fatalf("%s: data mismatch at %d", name, i)
			}
		}
	}
}
