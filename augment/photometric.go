package augment

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// PixelOp is a photometric transform whose random parameters are already
// drawn. It changes pixel values without moving content.
type PixelOp interface {
	Apply(img *image.NRGBA) *image.NRGBA
}

// Photometric draws a PixelOp, or nil when the transform is skipped.
type Photometric interface {
	Sample(r Rand) PixelOp
}

// BrightnessContrast scales and shifts pixel values with probability P:
// out = in*alpha + beta*255, alpha in 1±ContrastLimit, beta in ±BrightnessLimit.
type BrightnessContrast struct {
	BrightnessLimit float64
	ContrastLimit   float64
	P               float64
}

// Sample implements Photometric.
func (bc BrightnessContrast) Sample(r Rand) PixelOp {
	if !fires(r, bc.P) {
		return nil
	}
	alpha := 1 + uniform(r, -bc.ContrastLimit, bc.ContrastLimit)
	beta := uniform(r, -bc.BrightnessLimit, bc.BrightnessLimit)
	return BrightnessContrastOp{Alpha: alpha, Beta: beta}
}

// BrightnessContrastOp is a drawn brightness/contrast adjustment.
type BrightnessContrastOp struct {
	Alpha float64
	Beta  float64
}

// Apply implements PixelOp. Alpha is left untouched.
func (o BrightnessContrastOp) Apply(img *image.NRGBA) *image.NRGBA {
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampUint8(float64(i)*o.Alpha + o.Beta*255)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// GaussianBlur blurs with probability P using a kernel size drawn from Kernels.
type GaussianBlur struct {
	Kernels []int
	P       float64
}

// Sample implements Photometric.
func (gb GaussianBlur) Sample(r Rand) PixelOp {
	if len(gb.Kernels) == 0 || !fires(r, gb.P) {
		return nil
	}
	return BlurOp{Kernel: gb.Kernels[r.Intn(len(gb.Kernels))]}
}

// BlurOp is a drawn Gaussian blur.
type BlurOp struct {
	Kernel int
}

// Sigma is the standard deviation matching the kernel size.
func (o BlurOp) Sigma() float64 {
	return 0.3*((float64(o.Kernel)-1)*0.5-1) + 0.8
}

// Apply implements PixelOp.
func (o BlurOp) Apply(img *image.NRGBA) *image.NRGBA {
	return imaging.Blur(img, o.Sigma())
}

// Pipeline runs photometric transforms in order, drawing new parameters on
// every call.
type Pipeline struct {
	transforms []Photometric
}

// NewPipeline builds a photometric pipeline.
func NewPipeline(transforms ...Photometric) *Pipeline {
	return &Pipeline{transforms: transforms}
}

// Sample draws every transform once.
func (p *Pipeline) Sample(r Rand) []PixelOp {
	ops := make([]PixelOp, 0, len(p.transforms))
	for _, t := range p.transforms {
		if op := t.Sample(r); op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// Apply draws and applies the pipeline to a single image.
func (p *Pipeline) Apply(r Rand, img image.Image) *image.NRGBA {
	return ApplyPixelOps(p.Sample(r), ToNRGBA(img))
}

// ApplyPixelOps applies drawn ops in order.
func ApplyPixelOps(ops []PixelOp, img *image.NRGBA) *image.NRGBA {
	for _, op := range ops {
		img = op.Apply(img)
	}
	return img
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
