package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"dropindex/internal/logging"
	"dropindex/internal/services"
	"dropindex/internal/services/webclient"
)

// Image is a downloaded and decoded image.
type Image struct {
	URL         string
	Fingerprint int64
	Width       int
	Height      int
	MIME        string
	ContentHash string
}

// Area returns the pixel area.
func (i Image) Area() int {
	return i.Width * i.Height
}

// Fetcher downloads images and fingerprints them.
type Fetcher struct {
	client *webclient.Client
	logger *slog.Logger
}

// NewFetcher constructs a Fetcher. The client carries the timeout and rate
// limit for image hosts.
func NewFetcher(client *webclient.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = webclient.New(webclient.Options{Name: "images"})
	}
	return &Fetcher{
		client: client,
		logger: logging.NewComponentLogger(logger, "fingerprint"),
	}
}

// Fetch downloads url and decodes it. Bodies that are not images fail with a
// transient error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Image{}, services.Wrap(services.ErrValidation, "fingerprint", "fetch", "empty image url", nil)
	}
	resp, err := f.client.Get(ctx, url, nil, nil)
	if err != nil {
		return Image{}, err
	}

	detected := mimetype.Detect(resp.Body)
	if !strings.HasPrefix(detected.String(), "image/") {
		return Image{}, services.Wrap(services.ErrTransient, "fingerprint", "fetch", "not an image: "+detected.String(), nil)
	}
	img, err := Decode(resp.Body)
	if err != nil {
		return Image{}, services.Wrap(services.ErrTransient, "fingerprint", "decode", detected.String(), err)
	}

	sum := sha256.Sum256(resp.Body)
	bounds := img.Bounds()
	return Image{
		URL:         url,
		Fingerprint: Compute(img),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		MIME:        detected.String(),
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// FetchAndFingerprint returns the fingerprint of the image at url. Any
// network, status, timeout or decode failure yields (0, false).
func (f *Fetcher) FetchAndFingerprint(ctx context.Context, url string) (int64, bool) {
	img, err := f.Fetch(ctx, url)
	if err != nil {
		logging.WithContext(ctx, f.logger).Debug("image fingerprint unavailable",
			logging.String("url", url),
			logging.Error(err),
		)
		return 0, false
	}
	return img.Fingerprint, true
}
