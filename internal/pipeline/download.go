package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/snarg/stream-scribe/internal/storage"
)

// fallbackFilename is used when the media URL has no usable path segment.
const fallbackFilename = "stream-media"

// Downloader fetches a remote media resource into destDir and returns the
// local path.
type Downloader interface {
	Download(ctx context.Context, mediaURL, destDir string) (string, error)
}

// HTTPDownloader streams media over HTTP(S) straight to disk.
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader creates a downloader. The client carries no timeout:
// recordings can be arbitrarily large and the download stage is unbounded.
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{client: &http.Client{}}
}

// Download fetches mediaURL into destDir, streaming the body to disk so
// memory use stays bounded regardless of file size. The filename comes from
// the URL's last path segment; distinct streams sharing a basename land on
// the same file.
func (d *HTTPDownloader) Download(ctx context.Context, mediaURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	return storage.WriteAtomic(destDir, FilenameFromURL(mediaURL), resp.Body)
}

// FilenameFromURL derives a local filename from the URL's last path segment,
// query string excluded. Falls back to a generic name when the path has none.
func FilenameFromURL(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return fallbackFilename
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallbackFilename
	}
	return name
}
