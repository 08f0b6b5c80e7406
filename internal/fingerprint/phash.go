package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/bits"
	"sort"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	sampleSize = 32
	blockSize  = 8
	hashBits   = blockSize * blockSize
)

// dctCoefficients[u][x] = cos((2x+1)uπ / 2N), shared by every hash.
var dctCoefficients = func() [sampleSize][sampleSize]float64 {
	var c [sampleSize][sampleSize]float64
	for u := 0; u < sampleSize; u++ {
		for x := 0; x < sampleSize; x++ {
			c[u][x] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / (2 * sampleSize))
		}
	}
	return c
}()

// Decode reads an image in any registered format (JPEG, PNG, GIF, WebP),
// applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// FromBytes decodes data and returns its fingerprint.
func FromBytes(data []byte) (int64, error) {
	img, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return Compute(img), nil
}

// Compute returns the perceptual hash of img.
func Compute(img image.Image) int64 {
	gray := imaging.Grayscale(img)
	small := imaging.Resize(gray, sampleSize, sampleSize, imaging.Lanczos)

	var pixels [sampleSize][sampleSize]float64
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			// Grayscale leaves R == G == B.
			pixels[y][x] = float64(small.Pix[y*small.Stride+x*4])
		}
	}

	block := lowFrequencies(&pixels)
	sorted := block
	sort.Float64s(sorted[:])
	median := (sorted[hashBits/2-1] + sorted[hashBits/2]) / 2

	var hash uint64
	for i, v := range block {
		if v > median {
			hash |= 1 << uint(hashBits-1-i)
		}
	}
	return int64(hash)
}

// lowFrequencies returns the top-left 8x8 DCT-II coefficients of pixels in
// row-major order, rows being vertical frequency. The coefficients are left
// unnormalized, as scipy's dct computes them, so the median split yields the
// same bits as imagehash's phash.
func lowFrequencies(pixels *[sampleSize][sampleSize]float64) [hashBits]float64 {
	// Row pass: rows[y][u] = sum_x pixels[y][x] * c[u][x], for u < 8.
	var rows [sampleSize][blockSize]float64
	for y := 0; y < sampleSize; y++ {
		for u := 0; u < blockSize; u++ {
			var sum float64
			for x := 0; x < sampleSize; x++ {
				sum += pixels[y][x] * dctCoefficients[u][x]
			}
			rows[y][u] = sum
		}
	}

	var out [hashBits]float64
	for v := 0; v < blockSize; v++ {
		for u := 0; u < blockSize; u++ {
			var sum float64
			for y := 0; y < sampleSize; y++ {
				sum += rows[y][u] * dctCoefficients[v][y]
			}
			out[v*blockSize+u] = sum
		}
	}
	return out
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b int64) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}

// Hex formats a fingerprint as the 16 hex digits of its unsigned bits.
func Hex(fp int64) string {
	return fmt.Sprintf("%016x", uint64(fp))
}
