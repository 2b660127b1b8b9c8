package storage

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	utils "github.com/fathima-sithara/media-service/internal/utis"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds raw file bytes addressed by blob name.
type BlobStore interface {
	// Upload writes data under name and returns its retrieval URL.
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, name string) error
	PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// NewBlobName returns a unique blob name under the owner's prefix.
func NewBlobName(userID, filename string) string {
	return userID + "/" + utils.NewID() + "_" + cleanFileName(filename)
}

func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// objectURL joins base and the escaped blob name.
func objectURL(base, name string) string {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segs, "/")
}
