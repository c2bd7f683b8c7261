package pascal

import (
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/ChenXinhao/fcn/fcn"
	"github.com/pkg/errors"
)

// Unpack converts an image to float32 channel planes in B,G,R order with the
// given mean subtracted, matching the layout the pretrained weights expect.
func Unpack(src image.Image, mean [3]float32) []float32 {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	npix := w * h
	data := make([]float32, 3*npix)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			data[i] = float32(bl>>8) - mean[0]
			data[npix+i] = float32(g>>8) - mean[1]
			data[2*npix+i] = float32(r>>8) - mean[2]
			i++
		}
	}
	return data
}

func loadImage(filePath string) (image.Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// loadMask decodes a paletted png label mask. Palette indices are the class
// ids with the boundary value mapped to fcn.IgnoreLabel.
func loadMask(filePath string) ([]int32, int, int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, 0, 0, err
	}
	pal, ok := img.(*image.Paletted)
	if !ok {
		return nil, 0, 0, errors.Errorf("label mask must be a paletted png - got %T", img)
	}
	b := pal.Bounds()
	w, h := b.Dx(), b.Dy()
	label := make([]int32, w*h)
	for y := 0; y < h; y++ {
		row := pal.Pix[y*pal.Stride : y*pal.Stride+w]
		for x, v := range row {
			if v == boundaryValue {
				label[y*w+x] = fcn.IgnoreLabel
			} else {
				label[y*w+x] = int32(v)
			}
		}
	}
	return label, h, w, nil
}
