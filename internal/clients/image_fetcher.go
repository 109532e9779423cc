package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	imageFetchTimeout = 10 * time.Second
	maxImageBytes     = 8 << 20
)

// ImageFetcher downloads product images for vision calls. Vision providers
// want raw bytes, not URLs, so fetching is our problem.
type ImageFetcher struct {
	client *http.Client
}

func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{
		client: &http.Client{Timeout: imageFetchTimeout},
	}
}

// Fetch downloads one image and returns its bytes and content type.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) (VisionImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return VisionImage{}, fmt.Errorf("[ImageFetcher] build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return VisionImage{}, fmt.Errorf("[ImageFetcher] fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VisionImage{}, fmt.Errorf("[ImageFetcher] fetch %s: status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return VisionImage{}, fmt.Errorf("[ImageFetcher] read %s: %w", url, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return VisionImage{Data: data, MIMEType: mimeType}, nil
}
