package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/guesthairspa/salon/internal/storage"
)

// AllowedImageExtensions lists the picture formats accepted for upload.
var AllowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// ImageFile is an uploaded picture.  Size is the size announced by the
// client; the stream is still capped while copying.
type ImageFile struct {
	Filename string
	Size     int64
	Body     io.Reader
}

func randomBase36(n int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base36[k.Int64()])
	}
	return sb.String(), nil
}

// objectName builds `<unix-millis>-<6 base36 chars>.<ext>`.
func objectName(now time.Time, ext string) (string, error) {
	suffix, err := randomBase36(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext), nil
}

// capReader fails with ErrImageTooLarge once more than max bytes were read.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, ErrImageTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, ErrImageTooLarge
	}
	return n, err
}

// imageUploader stores pictures in a bucket under generated names.
type imageUploader struct {
	bucket   storage.Bucket
	maxBytes int64
	now      func() time.Time
}

func (u *imageUploader) upload(ctx context.Context, f *ImageFile) (string, error) {
	if f == nil || f.Body == nil {
		return "", ValidationErrors{{Field: "image", Message: MsgRequired}}
	}
	if f.Size > u.maxBytes {
		return "", ErrImageTooLarge
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	if !AllowedImageExtensions[ext] {
		return "", ErrUnsupportedImage
	}

	// A name collision needs the same millisecond and suffix; retry a few
	// times rather than overwrite.
	for attempt := 0; attempt < 3; attempt++ {
		name, err := objectName(u.now(), ext)
		if err != nil {
			return "", err
		}
		err = u.bucket.Put(ctx, name, &capReader{r: f.Body, left: u.maxBytes})
		switch {
		case err == nil:
			return u.bucket.PublicURL(name), nil
		case errors.Is(err, storage.ErrObjectExists):
			continue
		case errors.Is(err, ErrImageTooLarge):
			return "", ErrImageTooLarge
		default:
			return "", fmt.Errorf("upload image: %w", err)
		}
	}
	return "", errors.New("upload image: could not find a free object name")
}

// discard removes a picture previously returned by upload.  URLs outside the
// bucket, such as seeded stock photos, are left alone.
func (u *imageUploader) discard(ctx context.Context, publicURL string) {
	name, ok := u.bucket.ObjectName(publicURL)
	if !ok {
		return
	}
	if err := u.bucket.Delete(ctx, name); err != nil {
		slog.Warn("delete image failed", "error", err, "object", name)
	}
}
