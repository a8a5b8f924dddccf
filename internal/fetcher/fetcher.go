// Package fetcher retrieves input layers from local paths or HTTP and
// stream-decodes CSV, JSON arrays and JSON lines.
package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// IsRemote reports whether location is an http(s) URL rather than a path.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Open returns a reader for location. URLs go through f; anything else is
// opened as a local file. The caller closes the reader.
func Open(ctx context.Context, f Fetcher, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, eris.New("fetcher: empty location")
	}
	if IsRemote(location) {
		if f == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", location)
		}
		return f.Download(ctx, location)
	}
	file, err := os.Open(location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", location)
	}
	return file, nil
}
