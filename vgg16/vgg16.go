// Package vgg16 fetches pretrained VGG16 backbone parameters and verifies
// them before they are transferred into a segmentation model.
package vgg16

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/ChenXinhao/fcn/params"
	"github.com/pkg/errors"
)

// Default location and checksum of the gob encoded parameter set.
const (
	DefaultURL    = "https://github.com/ChenXinhao/fcn/releases/download/v1.0/vgg16.params.gob"
	DefaultSHA256 = "5c22ee958e1f4f0ea015a45f09efcb6a61a9a2472b7b5b5e0e2b5a52a080a611"
)

// Download fetches the parameter file to dir unless a copy with a matching
// checksum is already cached there. A download or checksum failure is fatal
// for training, so the caller should not retry.
func Download(dir, url, sum string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	filePath := path.Join(dir, path.Base(url))
	if ok, _ := verify(filePath, sum); ok {
		return filePath, nil
	}
	fmt.Println("downloading pretrained model from", url)
	resp, err := http.Get(url)
	if err != nil {
		return "", errors.Wrap(err, "downloading pretrained model")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("downloading pretrained model: %s", resp.Status)
	}
	tmp := filePath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "downloading pretrained model")
	}
	if ok, got := verify(tmp, sum); !ok {
		os.Remove(tmp)
		return "", errors.Errorf("pretrained model checksum mismatch: have %s want %s", got, sum)
	}
	if err = os.Rename(tmp, filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// Load decodes the gob encoded parameter set.
func Load(filePath string) (params.Set, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := params.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading pretrained model %s", filePath)
	}
	return s, nil
}

// verify returns whether the file checksum matches, and the actual checksum.
func verify(filePath, sum string) (bool, string) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return false, ""
	}
	got := hex.EncodeToString(h.Sum(nil))
	return got == sum, got
}
