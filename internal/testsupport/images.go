package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// PatternImage draws a smooth grayscale picture of overlapping soft blobs
// whose layout depends on seed. The same seed at different sizes yields
// visually identical images.
func PatternImage(width, height int, seed int) image.Image {
	rng := rand.New(rand.NewSource(int64(seed)*7919 + 17))
	type blob struct{ cx, cy, r, amp float64 }
	blobs := make([]blob, 7)
	for i := range blobs {
		amp := 40 + rng.Float64()*60
		if rng.Intn(2) == 0 {
			amp = -amp
		}
		blobs[i] = blob{cx: rng.Float64(), cy: rng.Float64(), r: 0.08 + rng.Float64()*0.2, amp: amp}
	}
	gx := rng.Float64()*60 - 30
	gy := rng.Float64()*60 - 30

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u := (float64(x) + 0.5) / float64(width)
			v := (float64(y) + 0.5) / float64(height)
			val := 128 + gx*(u-0.5) + gy*(v-0.5)
			for _, b := range blobs {
				du, dv := u-b.cx, v-b.cy
				val += b.amp * math.Exp(-(du*du+dv*dv)/(2*b.r*b.r))
			}
			img.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, val)))})
		}
	}
	return img
}

// PNG encodes img as PNG.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes img as JPEG at high quality.
func JPEG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// ImageServer serves registered payloads by path. Unknown paths return 404.
type ImageServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

// NewImageServer starts an ImageServer and registers cleanup.
func NewImageServer(t testing.TB) *ImageServer {
	t.Helper()

	s := &ImageServer{files: make(map[string][]byte), hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Add registers payload at path and returns its absolute URL.
func (s *ImageServer) Add(path string, payload []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = payload
	return s.URL + path
}

// Hits returns how many times path was requested.
func (s *ImageServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *ImageServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	payload, ok := s.files[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(payload)
}
