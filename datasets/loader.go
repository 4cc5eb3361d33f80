package datasets

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Noofbiz/changeDetect/augment"
)

// RawSample is a decoded triplet before augmentation and tensorization.
type RawSample struct {
	ID   string
	Ref  *image.NRGBA
	Test *image.NRGBA
	// Mask is binarized: every pixel is 0 or 1.
	Mask *image.Gray
}

// loadRaw decodes the three files of id. Any failure aborts the whole sample.
// The returned error matches ErrSampleMissing and keeps the open or decode
// error in its chain, so callers can still tell fs.ErrNotExist apart.
func loadRaw(id, refPath, testPath, maskPath string) (*RawSample, error) {
	ref, err := decodeImageFile(refPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reference image %s: %w", ErrSampleMissing, refPath, err)
	}
	test, err := decodeImageFile(testPath)
	if err != nil {
		return nil, fmt.Errorf("%w: test image %s: %w", ErrSampleMissing, testPath, err)
	}
	mask, err := decodeImageFile(maskPath)
	if err != nil {
		return nil, fmt.Errorf("%w: mask %s: %w", ErrSampleMissing, maskPath, err)
	}

	return &RawSample{
		ID:   id,
		Ref:  augment.ToNRGBA(ref),
		Test: augment.ToNRGBA(test),
		Mask: Binarize(mask),
	}, nil
}

// Binarize maps a mask to {0,1}. Each pixel's luminance v in [0,1] becomes
// int(clamp(v*255, 0, 1)).
//
// Masks are expected as 0-255 intensity images: any non-zero 8-bit pixel
// gives 1 and zero gives 0. A 16-bit mask whose values stay below 1/255 of
// full scale would truncate to 0.
func Binarize(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			v := float64(g.Y) * 255 / 0xffff
			if v >= 1 {
				out.SetGray(x, y, color.Gray{Y: 1})
			}
		}
	}
	return out
}
