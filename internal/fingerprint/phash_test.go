package fingerprint_test

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sort"
	"testing"

	"dropindex/internal/fingerprint"
	"dropindex/internal/testsupport"
)

func TestDistanceIsSymmetric(t *testing.T) {
	values := []int64{0, 1, -1, 0x0f0f0f0f0f0f0f0f, -0x7fffffffffffffff - 1, 123456789}
	for _, a := range values {
		for _, b := range values {
			if fingerprint.Distance(a, b) != fingerprint.Distance(b, a) {
				t.Fatalf("Distance(%d,%d) not symmetric", a, b)
			}
		}
		if fingerprint.Distance(a, a) != 0 {
			t.Fatalf("Distance(%d,%d) should be 0", a, a)
		}
	}
	if got := fingerprint.Distance(0, -1); got != 64 {
		t.Fatalf("Distance(0,-1) = %d, want 64", got)
	}
}

func TestComputeSymmetryOverImages(t *testing.T) {
	a := fingerprint.Compute(testsupport.PatternImage(200, 200, 1))
	b := fingerprint.Compute(testsupport.PatternImage(200, 200, 6))
	if fingerprint.Distance(a, b) != fingerprint.Distance(b, a) {
		t.Fatal("image fingerprint distance must be symmetric")
	}
}

func TestComputeIsStableAcrossResizeAndRecompression(t *testing.T) {
	large := testsupport.PatternImage(640, 640, 3)
	small := testsupport.PatternImage(300, 300, 3)

	fpLarge, err := fingerprint.FromBytes(testsupport.PNG(t, large))
	if err != nil {
		t.Fatalf("FromBytes(png): %v", err)
	}
	fpSmall, err := fingerprint.FromBytes(testsupport.JPEG(t, small))
	if err != nil {
		t.Fatalf("FromBytes(jpeg): %v", err)
	}
	if d := fingerprint.Distance(fpLarge, fpSmall); d > 6 {
		t.Fatalf("expected resized jpeg to stay within 6 bits, got %d", d)
	}
}

func TestComputeSeparatesDifferentImages(t *testing.T) {
	a := fingerprint.Compute(testsupport.PatternImage(256, 256, 1))
	b := fingerprint.Compute(testsupport.PatternImage(256, 256, 10))
	if d := fingerprint.Distance(a, b); d <= 6 {
		t.Fatalf("expected distinct patterns to differ by more than 6 bits, got %d", d)
	}
}

func TestComputeUsesHighBit(t *testing.T) {
	// A bright left half puts a large positive coefficient in the first
	// horizontal frequency, which lands in the second most significant bit.
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(20)
			if x < 32 {
				v = 230
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	fp := fingerprint.Compute(img)
	if uint64(fp)&(1<<62) == 0 {
		t.Fatalf("expected bit 62 set for a left-bright image, got %s", fingerprint.Hex(fp))
	}
}

func TestFromBytesRejectsGarbage(t *testing.T) {
	if _, err := fingerprint.FromBytes([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

// referenceHash is a direct 2D DCT-II over a 32x32 grayscale image, without
// per-frequency normalization, thresholded at the median of the 8x8 block.
func referenceHash(img *image.Gray) int64 {
	var block [64]float64
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			var sum float64
			for y := 0; y < 32; y++ {
				for x := 0; x < 32; x++ {
					sum += float64(img.GrayAt(x, y).Y) *
						math.Cos(float64(2*y+1)*float64(v)*math.Pi/64) *
						math.Cos(float64(2*x+1)*float64(u)*math.Pi/64)
				}
			}
			block[v*8+u] = sum
		}
	}
	sorted := block
	sort.Float64s(sorted[:])
	median := (sorted[31] + sorted[32]) / 2
	var hash uint64
	for i, c := range block {
		if c > median {
			hash |= 1 << uint(63-i)
		}
	}
	return int64(hash)
}

func TestComputeMatchesUnnormalizedDCT(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewSource(seed))
		img := image.NewGray(image.Rect(0, 0, 32, 32))
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				// Smooth gradient plus noise keeps the low frequencies busy.
				v := 4*x + 3*y + rng.Intn(40)
				if v > 255 {
					v = 255
				}
				img.SetGray(x, y, color.Gray{Y: uint8(v)})
			}
		}
		got := fingerprint.Compute(img)
		want := referenceHash(img)
		if got != want {
			t.Fatalf("seed %d: Compute = %s, want %s", seed, fingerprint.Hex(got), fingerprint.Hex(want))
		}
	}
}
