package augment

import (
	"bytes"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// scriptedRand replays fixed draws so tests can force a branch.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 1
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0] % n
	s.ints = s.ints[1:]
	return v
}

// randomTriplet builds an image pair and a mask where the red channel of both
// images is 255 exactly where the mask is 1.
func randomTriplet(w, h int, seed int64) (*image.NRGBA, *image.NRGBA, *image.Gray) {
	rng := rand.New(rand.NewSource(seed))
	ref := image.NewNRGBA(image.Rect(0, 0, w, h))
	test := image.NewNRGBA(image.Rect(0, 0, w, h))
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			on := rng.Intn(2) == 1
			var r uint8
			if on {
				r = 255
				mask.SetGray(x, y, color.Gray{Y: 1})
			}
			ref.SetNRGBA(x, y, color.NRGBA{R: r, G: uint8(rng.Intn(256)), B: 10, A: 255})
			test.SetNRGBA(x, y, color.NRGBA{R: r, G: uint8(rng.Intn(256)), B: 20, A: 255})
		}
	}
	return ref, test, mask
}

func tripletTargets() []Target {
	return []Target{
		{Name: TargetRef, Kind: KindImage},
		{Name: TargetTest, Kind: KindImage},
		{Name: TargetMask, Kind: KindMask},
	}
}

func assertAligned(t *testing.T, img *image.NRGBA, mask *image.Gray) {
	t.Helper()
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			on := img.NRGBAAt(x, y).R == 255
			if on != (mask.GrayAt(x, y).Y == 1) {
				t.Fatalf("image and mask disagree at (%d,%d): red=%d mask=%d",
					x, y, img.NRGBAAt(x, y).R, mask.GrayAt(x, y).Y)
			}
		}
	}
}

func TestFlipOp_KeepsTargetsAligned(t *testing.T) {
	ref, test, mask := randomTriplet(7, 5, 1)
	shared := NewShared(tripletTargets())

	for _, axis := range []FlipAxis{FlipVertical, FlipHorizontal, FlipBoth} {
		out, err := shared.ApplySampled(Sampled{FlipOp{Axis: axis}}, map[string]image.Image{
			TargetRef: ref, TargetTest: test, TargetMask: mask,
		})
		if err != nil {
			t.Fatalf("ApplySampled(axis=%d) failed: %v", axis, err)
		}
		outMask := out[TargetMask].(*image.Gray)
		assertAligned(t, out[TargetRef].(*image.NRGBA), outMask)
		assertAligned(t, out[TargetTest].(*image.NRGBA), outMask)
		if bytes.Equal(outMask.Pix, mask.Pix) {
			t.Fatalf("flip axis %d left the mask unchanged", axis)
		}
	}
}

func TestFlipOp_HorizontalMovesPixel(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 4, 3))
	mask.SetGray(0, 1, color.Gray{Y: 1})

	got := FlipOp{Axis: FlipHorizontal}.Mask(mask)
	if got.GrayAt(3, 1).Y != 1 || got.GrayAt(0, 1).Y != 0 {
		t.Fatalf("horizontal flip did not mirror the pixel: %v", got.Pix)
	}

	got = FlipOp{Axis: FlipVertical}.Mask(mask)
	if got.GrayAt(0, 1).Y != 1 {
		t.Fatalf("vertical flip should keep the middle row: %v", got.Pix)
	}
}

func TestShared_ForcedDrawAppliesToEveryTarget(t *testing.T) {
	ref, test, mask := randomTriplet(9, 9, 2)
	shared := NewShared(tripletTargets(), Flip{P: 0.5})

	// 0.1 < 0.5 fires the flip, Intn picks horizontal.
	r := &scriptedRand{floats: []float64{0.1}, ints: []int{int(FlipHorizontal)}}
	out, err := shared.Apply(r, map[string]image.Image{TargetRef: ref, TargetTest: test, TargetMask: mask})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := FlipOp{Axis: FlipHorizontal}.Mask(mask)
	if !bytes.Equal(out[TargetMask].(*image.Gray).Pix, want.Pix) {
		t.Fatalf("mask did not receive the horizontal flip")
	}
	assertAligned(t, out[TargetRef].(*image.NRGBA), want)
	assertAligned(t, out[TargetTest].(*image.NRGBA), want)
}

func TestShared_SameSeedReproduces(t *testing.T) {
	ref, test, mask := randomTriplet(32, 24, 3)
	recipe := DefaultRecipe()

	for seed := int64(1); seed <= 10; seed++ {
		a1, b1, m1, err := recipe.Apply(NewLockedRand(seed), ref, test, mask)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		a2, b2, m2, err := recipe.Apply(NewLockedRand(seed), ref, test, mask)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !bytes.Equal(a1.Pix, a2.Pix) || !bytes.Equal(b1.Pix, b2.Pix) || !bytes.Equal(m1.Pix, m2.Pix) {
			t.Fatalf("seed %d: outputs differ between runs", seed)
		}
	}
}

func TestShared_IdenticalImagesStayIdentical(t *testing.T) {
	// ref and test carry the same content: one shared draw must keep them equal.
	ref, _, mask := randomTriplet(20, 20, 4)
	test := ToNRGBA(ref)
	testCopy := image.NewNRGBA(test.Bounds())
	copy(testCopy.Pix, test.Pix)

	shared := NewShared(tripletTargets(), Flip{P: 0.5}, Rotate{Limit: 5, P: 0.5})
	r := NewLockedRand(99)
	for i := 0; i < 25; i++ {
		out, err := shared.Apply(r, map[string]image.Image{TargetRef: ref, TargetTest: testCopy, TargetMask: mask})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !bytes.Equal(out[TargetRef].(*image.NRGBA).Pix, out[TargetTest].(*image.NRGBA).Pix) {
			t.Fatalf("iteration %d: ref and test received different transforms", i)
		}
	}
}

func TestRotateOp_MaskStaysBinary(t *testing.T) {
	_, _, mask := randomTriplet(40, 30, 5)
	for _, angle := range []float64{-5, -2.3, 0.7, 4.99, 13.7} {
		got := RotateOp{Angle: angle}.Mask(mask)
		if got.Bounds() != mask.Bounds() {
			t.Fatalf("rotation changed bounds: %v -> %v", mask.Bounds(), got.Bounds())
		}
		for i, v := range got.Pix {
			if v != 0 && v != 1 {
				t.Fatalf("angle %v: mask value %d at %d is not binary", angle, v, i)
			}
		}
	}
}

func TestRotateOp_QuarterTurnIsCounterClockwise(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 3, 3))
	mask.SetGray(0, 0, color.Gray{Y: 1})

	got := RotateOp{Angle: 90}.Mask(mask)
	if got.GrayAt(0, 2).Y != 1 {
		t.Fatalf("expected top-left pixel to move to bottom-left, got %v", got.Pix)
	}
	ones := 0
	for _, v := range got.Pix {
		ones += int(v)
	}
	if ones != 1 {
		t.Fatalf("expected a single set pixel, got %d", ones)
	}
}

func TestRotateOp_KeepsImageBounds(t *testing.T) {
	ref, _, _ := randomTriplet(33, 17, 6)
	got := RotateOp{Angle: 3}.Image(ref)
	if got.Bounds() != ref.Bounds() {
		t.Fatalf("rotation changed bounds: %v -> %v", ref.Bounds(), got.Bounds())
	}
}

func TestShared_ToleratesShapeMismatch(t *testing.T) {
	ref, test, _ := randomTriplet(10, 10, 7)
	mask := image.NewGray(image.Rect(0, 0, 6, 4))
	shared := NewShared(tripletTargets(), Flip{P: 1}, Rotate{Limit: 5, P: 1})

	out, err := shared.Apply(NewLockedRand(1), map[string]image.Image{TargetRef: ref, TargetTest: test, TargetMask: mask})
	if err != nil {
		t.Fatalf("Apply failed on mismatched shapes: %v", err)
	}
	if out[TargetMask].Bounds().Dx() != 6 || out[TargetRef].Bounds().Dx() != 10 {
		t.Fatalf("targets did not keep their own shapes")
	}
}

func TestShared_RejectsBadInputs(t *testing.T) {
	ref, test, mask := randomTriplet(4, 4, 8)
	shared := NewShared(tripletTargets(), Flip{P: 1})

	if _, err := shared.Apply(NewLockedRand(1), map[string]image.Image{TargetRef: ref, TargetTest: test}); err == nil {
		t.Fatalf("expected error for missing mask target")
	}
	_, err := shared.Apply(NewLockedRand(1), map[string]image.Image{
		TargetRef: ref, TargetTest: test, TargetMask: mask, "extra": ref,
	})
	if err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

func TestRecipe_NoopRandIsIdentity(t *testing.T) {
	ref, test, mask := randomTriplet(16, 16, 9)
	a, b, m, err := DefaultRecipe().Apply(NoopRand{}, ref, test, mask)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !bytes.Equal(a.Pix, ref.Pix) || !bytes.Equal(b.Pix, test.Pix) || !bytes.Equal(m.Pix, mask.Pix) {
		t.Fatalf("no-op draws changed the triplet")
	}
}

func TestReflect101(t *testing.T) {
	cases := []struct{ i, want int }{
		{-3, 3}, {-2, 2}, {-1, 1}, {0, 0}, {3, 3}, {4, 2}, {5, 1}, {6, 0}, {7, 1},
	}
	for _, c := range cases {
		if got := reflect101(c.i, 0, 4); got != c.want {
			t.Fatalf("reflect101(%d, 0, 4) = %d, want %d", c.i, got, c.want)
		}
	}
	if got := reflect101(-5, 2, 3); got != 2 {
		t.Fatalf("single-pixel range should always map to its pixel, got %d", got)
	}
}

func TestRotateOp_CornersAreReflected(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	mask := image.NewGray(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], []uint8{90, 160, 30, 255})
	}
	for i := range mask.Pix {
		mask.Pix[i] = 1
	}

	for _, angle := range []float64{-5, 3.3, 5} {
		op := RotateOp{Angle: angle}
		gotMask := op.Mask(mask)
		for i, v := range gotMask.Pix {
			if v != 1 {
				t.Fatalf("angle %v: mask pixel %d lost its label (%d)", angle, i, v)
			}
		}
		gotImg := op.Image(img)
		for i, v := range gotImg.Pix {
			want := img.Pix[i]
			if d := int(v) - int(want); d < -1 || d > 1 {
				t.Fatalf("angle %v: channel value %d at %d, want %d", angle, v, i, want)
			}
		}
	}
}
