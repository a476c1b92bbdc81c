// Package storage persists scored CSV outputs as blobs on the local
// filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentTypeCSV is the content type of scored result files.
const ContentTypeCSV = "text/csv"

var (
	// ErrNotFound is returned when a blob reference does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidRef is returned for malformed or escaping references.
	ErrInvalidRef = errors.New("invalid blob reference")
)

// BlobStore stores opaque blobs. Put returns a reference that Get accepts.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
}

// ResultKey names the blob for a scored upload, grouped by UTC date.
func ResultKey(now time.Time, filename string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(filename, `\`, "/")), path.Ext(filename))
	if base == "" || base == "." || base == "/" {
		base = "essays"
	}
	return fmt.Sprintf("results/%s/%s_scored_%s.csv", now.UTC().Format("2006/01/02"), base, uuid.NewString())
}

// cleanKey rejects keys that are absolute or escape the store root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidRef)
	}
	k := path.Clean(strings.ReplaceAll(key, `\`, "/"))
	if strings.HasPrefix(k, "/") || k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, key)
	}
	return k, nil
}
