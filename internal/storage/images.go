// Package storage persists uploaded vibe images on the local filesystem and
// serves them back over HTTP.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// extensions maps accepted content types to file extensions. Upload
// validation rejects anything else before Save runs.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageStore writes images under root/<userID>/ and builds public URLs from
// baseURL. Stored names are generated ids, so client-supplied filenames
// never touch the filesystem.
type ImageStore struct {
	root    string
	baseURL string
}

// NewImageStore ensures root exists. baseURL is the externally reachable
// prefix the images are served under, e.g. "https://host/images".
func NewImageStore(root, baseURL string) (*ImageStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &ImageStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes the image and returns its public URL.
func (s *ImageStore) Save(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}

	dir := filepath.Join(s.root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating user image directory: %w", err)
	}

	name := xid.New().String() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.baseURL, userID, name), nil
}

// Handler serves the stored images. Mount it under the path baseURL points
// at.
func (s *ImageStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}
