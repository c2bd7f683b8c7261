package fcn

import (
	"encoding/gob"
	"fmt"
	"os"
	"path"

	"github.com/ChenXinhao/fcn/params"
)

// Snapshot holds the serialized model and optimizer state at the end of a
// given training iteration.
type Snapshot struct {
	Iter   int
	Params params.Set
	Opt    Optimizer
}

// SnapshotName returns the file name used for the snapshot at iteration i.
func SnapshotName(i int) string {
	return fmt.Sprintf("snapshot_iter_%d.gob", i)
}

// Encode the snapshot in gob format and save it under dir.
func SaveSnapshot(dir string, snap Snapshot) (string, error) {
	filePath := path.Join(dir, SnapshotName(snap.Iter))
	f, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(&snap); err != nil {
		return "", err
	}
	return filePath, nil
}

// Read back a gob encoded snapshot file.
func LoadSnapshot(filePath string) (snap Snapshot, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	err = gob.NewDecoder(f).Decode(&snap)
	return snap, err
}
