// Package pascal reads the PASCAL VOC segmentation dataset from a VOCdevkit
// directory tree and yields samples in the form the trainer consumes.
package pascal

import (
	"bufio"
	"os"
	"path"

	"github.com/ChenXinhao/fcn/fcn"
	"github.com/pkg/errors"
)

// The 21 PASCAL VOC segmentation classes including background.
var ClassNames = []string{
	"background", "aeroplane", "bicycle", "bird", "boat",
	"bottle", "bus", "car", "cat", "chair",
	"cow", "diningtable", "dog", "horse", "motorbike",
	"person", "pottedplant", "sheep", "sofa", "train",
	"tvmonitor",
}

// Mean pixel of the pretraining corpus in B,G,R order, subtracted from each
// sample so the inputs match the pretrained backbone weights.
var MeanBGR = [3]float32{104.00698793, 116.66876762, 122.67891434}

// Raw mask value marking object boundary pixels, mapped to fcn.IgnoreLabel.
const boundaryValue = 255

var splitNames = []string{"train", "val", "trainval"}

// Dataset indexes the segmentation splits of one VOC year. The split lists
// are loaded once at startup and read only afterwards.
type Dataset struct {
	root   string
	splits map[string][]string
	mean   [3]float32
}

// Open the dataset rooted at the VOC year directory, e.g.
// VOCdevkit/VOC2012. The train, val and trainval split files must exist.
func New(root string) (*Dataset, error) {
	d := &Dataset{root: root, splits: map[string][]string{}, mean: MeanBGR}
	for _, split := range splitNames {
		file := path.Join(root, "ImageSets", "Segmentation", split+".txt")
		ids, err := readSplit(file)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s split", split)
		}
		d.splits[split] = ids
	}
	return d, nil
}

func (d *Dataset) Classes() []string { return ClassNames }

func (d *Dataset) Splits() []string { return splitNames }

// Len returns the number of samples in the split, 0 for an unknown split.
func (d *Dataset) Len(split string) int { return len(d.splits[split]) }

// Sample loads the image and label mask for entry i of the split.
func (d *Dataset) Sample(split string, i int) (fcn.Sample, error) {
	ids, ok := d.splits[split]
	if !ok {
		return fcn.Sample{}, errors.Errorf("unknown split: %q", split)
	}
	id := ids[i]
	img, err := loadImage(path.Join(d.root, "JPEGImages", id+".jpg"))
	if err != nil {
		return fcn.Sample{}, errors.Wrapf(err, "sample %s", id)
	}
	label, mh, mw, err := loadMask(path.Join(d.root, "SegmentationClass", id+".png"))
	if err != nil {
		return fcn.Sample{}, errors.Wrapf(err, "sample %s", id)
	}
	b := img.Bounds()
	if b.Dy() != mh || b.Dx() != mw {
		return fcn.Sample{}, errors.Errorf("sample %s: image is %dx%d but mask is %dx%d",
			id, b.Dx(), b.Dy(), mw, mh)
	}
	return fcn.Sample{
		Name:     id,
		Input:    Unpack(img, d.mean),
		Label:    label,
		Channels: 3,
		Height:   b.Dy(),
		Width:    b.Dx(),
	}, nil
}

// read one image id per line, blank lines skipped
func readSplit(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, scanner.Err()
}
