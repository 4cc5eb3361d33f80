package augment

import (
	"image"
	stddraw "image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Kind tells a shared pipeline how a target is resampled.
type Kind int

const (
	// KindImage targets hold continuous values and are interpolated.
	KindImage Kind = iota
	// KindMask targets hold labels and use nearest-neighbor sampling.
	KindMask
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMask:
		return "mask"
	}
	return "unknown"
}

// Target names one input of a shared pipeline.
type Target struct {
	Name string
	Kind Kind
}

// GeometricOp is a spatial transform whose random parameters are already
// drawn. The same op is applied to every target of a Shared pipeline.
type GeometricOp interface {
	Image(img *image.NRGBA) *image.NRGBA
	Mask(m *image.Gray) *image.Gray
}

// Geometric draws a GeometricOp, or nil when the transform is skipped.
type Geometric interface {
	Sample(r Rand) GeometricOp
}

// FlipAxis selects the mirror applied by a flip.
type FlipAxis int

const (
	// FlipVertical mirrors top to bottom.
	FlipVertical FlipAxis = iota
	// FlipHorizontal mirrors left to right.
	FlipHorizontal
	// FlipBoth mirrors both ways, a half turn.
	FlipBoth
)

// Flip mirrors with probability P along an axis picked uniformly among
// vertical, horizontal and both.
type Flip struct {
	P float64
}

// Sample implements Geometric.
func (f Flip) Sample(r Rand) GeometricOp {
	if !fires(r, f.P) {
		return nil
	}
	return FlipOp{Axis: FlipAxis(r.Intn(3))}
}

// FlipOp is a drawn flip.
type FlipOp struct {
	Axis FlipAxis
}

// Image implements GeometricOp.
func (o FlipOp) Image(img *image.NRGBA) *image.NRGBA {
	switch o.Axis {
	case FlipVertical:
		return imaging.FlipV(img)
	case FlipHorizontal:
		return imaging.FlipH(img)
	default:
		return imaging.Rotate180(img)
	}
}

// Mask implements GeometricOp.
func (o FlipOp) Mask(m *image.Gray) *image.Gray {
	return transformGray(m, flipMatrix(o.Axis, m.Bounds()), draw.NearestNeighbor)
}

// Rotate turns the input about its center with probability P by an angle
// drawn uniformly from [-Limit, Limit] degrees.
type Rotate struct {
	Limit float64
	P     float64
}

// Sample implements Geometric.
func (rt Rotate) Sample(r Rand) GeometricOp {
	if !fires(r, rt.P) {
		return nil
	}
	return RotateOp{Angle: uniform(r, -rt.Limit, rt.Limit)}
}

// RotateOp is a drawn rotation. Positive angles turn counter-clockwise. The
// output keeps the input bounds; pixels the rotated source does not cover are
// filled by mirroring the source around its edge pixels (reflect-101, the
// OpenCV default border), so corners are never left black or unlabelled.
type RotateOp struct {
	Angle float64
}

// Image implements GeometricOp.
func (o RotateOp) Image(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	if b.Empty() {
		return dst
	}
	src := padNRGBA(img, rotationPad(o.Angle, b))
	draw.BiLinear.Transform(dst, rotationMatrix(o.Angle, b), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Mask implements GeometricOp.
func (o RotateOp) Mask(m *image.Gray) *image.Gray {
	b := m.Bounds()
	dst := image.NewGray(b)
	if b.Empty() {
		return dst
	}
	src := padGray(m, rotationPad(o.Angle, b))
	draw.NearestNeighbor.Transform(dst, rotationMatrix(o.Angle, b), src, src.Bounds(), draw.Src, nil)
	return dst
}

// rotationMatrix maps source to destination coordinates for a rotation about
// the center of b. Image y grows downwards, hence the negated angle.
func rotationMatrix(angle float64, b image.Rectangle) f64.Aff3 {
	sin, cos := math.Sincos(-angle * math.Pi / 180)
	cx := float64(b.Min.X+b.Max.X) / 2
	cy := float64(b.Min.Y+b.Max.Y) / 2
	return f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
}

// rotationPad is how far outside b the destination of a rotation reaches back
// into the source, plus room for the bilinear neighbors.
func rotationPad(angle float64, b image.Rectangle) int {
	inv := rotationMatrix(-angle, b)
	var over float64
	for _, p := range [][2]float64{
		{float64(b.Min.X), float64(b.Min.Y)}, {float64(b.Max.X), float64(b.Min.Y)},
		{float64(b.Min.X), float64(b.Max.Y)}, {float64(b.Max.X), float64(b.Max.Y)},
	} {
		x := inv[0]*p[0] + inv[1]*p[1] + inv[2]
		y := inv[3]*p[0] + inv[4]*p[1] + inv[5]
		over = max(over, float64(b.Min.X)-x, x-float64(b.Max.X), float64(b.Min.Y)-y, y-float64(b.Max.Y))
	}
	return int(math.Ceil(over)) + 2
}

// reflect101 folds i into [lo, hi) mirroring around the edge pixels without
// repeating them: lo-1 maps to lo+1.
func reflect101(i, lo, hi int) int {
	n := hi - lo
	if n == 1 {
		return lo
	}
	period := 2 * (n - 1)
	j := (i - lo) % period
	if j < 0 {
		j += period
	}
	if j >= n {
		j = period - j
	}
	return lo + j
}

// padNRGBA returns img grown by pad pixels on every side with a reflect-101
// border. The original pixels keep their coordinates.
func padNRGBA(img *image.NRGBA, pad int) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b.Inset(-pad))
	ob := out.Bounds()
	for y := ob.Min.Y; y < ob.Max.Y; y++ {
		sy := reflect101(y, b.Min.Y, b.Max.Y)
		for x := ob.Min.X; x < ob.Max.X; x++ {
			out.SetNRGBA(x, y, img.NRGBAAt(reflect101(x, b.Min.X, b.Max.X), sy))
		}
	}
	return out
}

func padGray(m *image.Gray, pad int) *image.Gray {
	b := m.Bounds()
	out := image.NewGray(b.Inset(-pad))
	ob := out.Bounds()
	for y := ob.Min.Y; y < ob.Max.Y; y++ {
		sy := reflect101(y, b.Min.Y, b.Max.Y)
		for x := ob.Min.X; x < ob.Max.X; x++ {
			out.SetGray(x, y, m.GrayAt(reflect101(x, b.Min.X, b.Max.X), sy))
		}
	}
	return out
}

func flipMatrix(axis FlipAxis, b image.Rectangle) f64.Aff3 {
	m := f64.Aff3{1, 0, 0, 0, 1, 0}
	if axis == FlipHorizontal || axis == FlipBoth {
		m[0], m[2] = -1, float64(b.Min.X+b.Max.X)
	}
	if axis == FlipVertical || axis == FlipBoth {
		m[4], m[5] = -1, float64(b.Min.Y+b.Max.Y)
	}
	return m
}

func transformGray(src *image.Gray, m f64.Aff3, interp draw.Interpolator) *image.Gray {
	dst := image.NewGray(src.Bounds())
	interp.Transform(dst, m, src, src.Bounds(), draw.Src, nil)
	return dst
}

// Shared applies one draw of its transforms to every target. This keeps the
// spatial correspondence between the targets intact.
type Shared struct {
	transforms []Geometric
	targets    []Target
}

// NewShared builds a pipeline over the given targets.
func NewShared(targets []Target, transforms ...Geometric) *Shared {
	return &Shared{transforms: transforms, targets: targets}
}

// Sampled is one draw of a Shared pipeline. Skipped transforms are absent.
type Sampled []GeometricOp

// Sample draws every transform once.
func (s *Shared) Sample(r Rand) Sampled {
	ops := make(Sampled, 0, len(s.transforms))
	for _, t := range s.transforms {
		if op := t.Sample(r); op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// Apply draws the transforms once and applies them to all inputs. Inputs must
// name exactly the pipeline's targets. Images come back as *image.NRGBA and
// masks as *image.Gray; their shapes are not required to match.
func (s *Shared) Apply(r Rand, inputs map[string]image.Image) (map[string]image.Image, error) {
	return s.ApplySampled(s.Sample(r), inputs)
}

// ApplySampled applies an already drawn set of ops to all inputs.
func (s *Shared) ApplySampled(ops Sampled, inputs map[string]image.Image) (map[string]image.Image, error) {
	if err := s.check(inputs); err != nil {
		return nil, err
	}
	out := make(map[string]image.Image, len(s.targets))
	for _, t := range s.targets {
		switch t.Kind {
		case KindImage:
			img := ToNRGBA(inputs[t.Name])
			for _, op := range ops {
				img = op.Image(img)
			}
			out[t.Name] = img
		case KindMask:
			m := ToGray(inputs[t.Name])
			for _, op := range ops {
				m = op.Mask(m)
			}
			out[t.Name] = m
		default:
			return nil, errors.Errorf("target %q has unknown kind %d", t.Name, t.Kind)
		}
	}
	return out, nil
}

func (s *Shared) check(inputs map[string]image.Image) error {
	known := make(map[string]bool, len(s.targets))
	for _, t := range s.targets {
		known[t.Name] = true
		if img, ok := inputs[t.Name]; !ok || img == nil {
			return errors.Errorf("missing input for target %q", t.Name)
		}
	}
	for name := range inputs {
		if !known[name] {
			return errors.Errorf("input %q is not a target of this pipeline", name)
		}
	}
	return nil
}

// ToNRGBA returns img as *image.NRGBA, converting when needed.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(img)
}

// ToGray returns img as *image.Gray, converting when needed.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	stddraw.Draw(g, b, img, b.Min, stddraw.Src)
	return g
}
