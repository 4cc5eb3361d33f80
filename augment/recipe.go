package augment

import (
	"image"

	"github.com/Noofbiz/changeDetect/config"
	"github.com/pkg/errors"
)

// Target names of the change-detection triplet.
const (
	TargetRef  = "ref"
	TargetTest = "test"
	TargetMask = "mask"
)

// Recipe is the training augmentation of a reference/test/mask triplet: a
// shared flip+rotate followed by an independent brightness/contrast+blur on
// each image.
type Recipe struct {
	Shared      *Shared
	Photometric *Pipeline
}

// NewRecipe builds the recipe from the augmentation section of cfg.
func NewRecipe(cfg *config.Config) *Recipe {
	a := cfg.Augment
	targets := []Target{
		{Name: TargetRef, Kind: KindImage},
		{Name: TargetTest, Kind: KindImage},
		{Name: TargetMask, Kind: KindMask},
	}
	return &Recipe{
		Shared: NewShared(targets,
			Flip{P: a.FlipProb},
			Rotate{Limit: a.RotateLimit, P: a.RotateProb},
		),
		Photometric: NewPipeline(
			BrightnessContrast{
				BrightnessLimit: a.BrightnessLimit,
				ContrastLimit:   a.ContrastLimit,
				P:               a.BrightnessContrastProb,
			},
			GaussianBlur{Kernels: a.BlurKernels, P: a.BlurProb},
		),
	}
}

// DefaultRecipe uses config.DefaultConfig.
func DefaultRecipe() *Recipe {
	return NewRecipe(config.DefaultConfig())
}

// Apply augments one triplet. The geometric draw is shared by the three
// arrays; the photometric pipeline draws separately for ref and for test and
// never touches the mask.
func (rc *Recipe) Apply(r Rand, ref, test *image.NRGBA, mask *image.Gray) (*image.NRGBA, *image.NRGBA, *image.Gray, error) {
	out, err := rc.Shared.Apply(r, map[string]image.Image{
		TargetRef:  ref,
		TargetTest: test,
		TargetMask: mask,
	})
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "shared geometric stage")
	}

	ref = rc.Photometric.Apply(r, out[TargetRef])
	test = rc.Photometric.Apply(r, out[TargetTest])
	return ref, test, out[TargetMask].(*image.Gray), nil
}
