package datasets

import (
	"image"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Sample is a prepared example: channel-first normalized images and a cropped
// mask, stored in contiguous buffers.
type Sample struct {
	ID string

	// Size is the side of the square crop, Channels the image channel count.
	Size     int
	Channels int

	// Ref and Test are shaped [Channels, Size, Size].
	Ref  []float32
	Test []float32

	// Mask is shaped [Size, Size] with values 0 or 1.
	Mask []int32
}

// ToGomlxTensors converts a Sample to gomlx tensors shaped [C,S,S], [C,S,S]
// and [S,S].
func (s *Sample) ToGomlxTensors() (ref, test, mask *tensors.Tensor) {
	ref = tensors.FromFlatDataAndDimensions(s.Ref, s.Channels, s.Size, s.Size)
	test = tensors.FromFlatDataAndDimensions(s.Test, s.Channels, s.Size, s.Size)
	mask = tensors.FromFlatDataAndDimensions(s.Mask, s.Size, s.Size)
	return ref, test, mask
}

// CenterCrop returns the size x size window centered in b. Offsets are
// rounded half to even. Bounds smaller than the window fail with ErrShape.
func CenterCrop(b image.Rectangle, size int) (image.Rectangle, error) {
	w, h := b.Dx(), b.Dy()
	if w < size || h < size {
		return image.Rectangle{}, errors.Wrapf(ErrShape, "%dx%d array, crop %dx%d", w, h, size, size)
	}
	left := int(math.RoundToEven(float64(w-size) / 2))
	top := int(math.RoundToEven(float64(h-size) / 2))
	origin := image.Pt(b.Min.X+left, b.Min.Y+top)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}, nil
}

// ImageToCHW crops img to crop and writes the RGB channels, scaled to [0,1]
// and normalized with mean/std, in channel-first order.
func ImageToCHW(img *image.NRGBA, crop image.Rectangle, mean, std []float64) []float32 {
	w, h := crop.Dx(), crop.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := img.PixOffset(crop.Min.X, crop.Min.Y+y)
		for x := 0; x < w; x++ {
			p := img.Pix[row+4*x : row+4*x+3]
			for c := 0; c < 3; c++ {
				v := float64(p[c]) / 255
				out[c*plane+y*w+x] = float32((v - mean[c]) / std[c])
			}
		}
	}
	return out
}

// MaskToHW crops a mask to crop. Values are copied as they are.
func MaskToHW(mask *image.Gray, crop image.Rectangle) []int32 {
	w, h := crop.Dx(), crop.Dy()
	out := make([]int32, w*h)
	for y := 0; y < h; y++ {
		row := mask.PixOffset(crop.Min.X, crop.Min.Y+y)
		for x := 0; x < w; x++ {
			out[y*w+x] = int32(mask.Pix[row+x])
		}
	}
	return out
}

// preprocessor is the tensorize stage: center crop, channel-first, normalize
// images; crop only for masks.
type preprocessor struct {
	size      int
	mean, std []float64
}

func (p preprocessor) tensorize(raw *RawSample) (*Sample, error) {
	refCrop, err := CenterCrop(raw.Ref.Bounds(), p.size)
	if err != nil {
		return nil, errors.Wrapf(err, "reference image of %s", raw.ID)
	}
	testCrop, err := CenterCrop(raw.Test.Bounds(), p.size)
	if err != nil {
		return nil, errors.Wrapf(err, "test image of %s", raw.ID)
	}
	maskCrop, err := CenterCrop(raw.Mask.Bounds(), p.size)
	if err != nil {
		return nil, errors.Wrapf(err, "mask of %s", raw.ID)
	}

	return &Sample{
		ID:       raw.ID,
		Size:     p.size,
		Channels: 3,
		Ref:      ImageToCHW(raw.Ref, refCrop, p.mean, p.std),
		Test:     ImageToCHW(raw.Test, testCrop, p.mean, p.std),
		Mask:     MaskToHW(raw.Mask, maskCrop),
	}, nil
}

// ChangeBatchFlat stores a batch of samples in contiguous buffers
type ChangeBatchFlat struct {
	IDs      []string
	Ref      []float32
	Test     []float32
	Mask     []int32
	Batch    int
	Channels int
	Size     int
}

// MakeChangeBatchFlat flattens samples into contiguous buffers. All samples
// must share channel count and size.
func MakeChangeBatchFlat(samples []*Sample) (*ChangeBatchFlat, error) {
	if len(samples) == 0 {
		return &ChangeBatchFlat{}, nil
	}

	channels, size := samples[0].Channels, samples[0].Size
	imgLen := channels * size * size
	maskLen := size * size

	b := &ChangeBatchFlat{
		IDs:      make([]string, len(samples)),
		Ref:      make([]float32, len(samples)*imgLen),
		Test:     make([]float32, len(samples)*imgLen),
		Mask:     make([]int32, len(samples)*maskLen),
		Batch:    len(samples),
		Channels: channels,
		Size:     size,
	}
	for i, s := range samples {
		if s.Channels != channels || s.Size != size {
			return nil, errors.Errorf("inconsistent shapes: sample 0 is %dx%dx%d, sample %d is %dx%dx%d",
				channels, size, size, i, s.Channels, s.Size, s.Size)
		}
		if len(s.Ref) != imgLen || len(s.Test) != imgLen || len(s.Mask) != maskLen {
			return nil, errors.Errorf("sample %d (%s) has wrong buffer sizes", i, s.ID)
		}
		b.IDs[i] = s.ID
		copy(b.Ref[i*imgLen:], s.Ref)
		copy(b.Test[i*imgLen:], s.Test)
		copy(b.Mask[i*maskLen:], s.Mask)
	}
	return b, nil
}

// ToGomlxTensors converts the batch to tensors shaped [B,C,S,S], [B,C,S,S]
// and [B,S,S].
func (b *ChangeBatchFlat) ToGomlxTensors() (ref, test, mask *tensors.Tensor, err error) {
	if b.Batch == 0 {
		return nil, nil, nil, errors.New("empty batch")
	}
	ref = tensors.FromFlatDataAndDimensions(b.Ref, b.Batch, b.Channels, b.Size, b.Size)
	test = tensors.FromFlatDataAndDimensions(b.Test, b.Batch, b.Channels, b.Size, b.Size)
	mask = tensors.FromFlatDataAndDimensions(b.Mask, b.Batch, b.Size, b.Size)
	return ref, test, mask, nil
}
