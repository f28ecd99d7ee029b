// Package storage holds the object bucket that keeps uploaded promotion
// images.  Objects are addressed by a flat name and served back through a
// public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// PromotionsBucket is the bucket that stores promotion pictures.
const PromotionsBucket = "promotions"

// MediaPrefix is the URL path under which buckets are published.
const MediaPrefix = "/media"

var (
	// ErrObjectExists is returned by Put when the name is already taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrInvalidName is returned for names that are empty or contain a path.
	ErrInvalidName = errors.New("invalid object name")
)

// Bucket is a flat object store.  Put never overwrites.
type Bucket interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
	PublicURL(name string) string
	// ObjectName returns the object name behind a public URL of this bucket,
	// or false when the URL points elsewhere.
	ObjectName(publicURL string) (string, bool)
}

// LocalBucket stores objects as files under <root>/<bucket>.
type LocalBucket struct {
	dir     string
	baseURL string
}

// NewLocalBucket creates the bucket directory if needed.  baseURL is the
// public origin of the service, e.g. https://guesthairspa.ma.
func NewLocalBucket(root, bucket, baseURL string) (*LocalBucket, error) {
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &LocalBucket{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/") + MediaPrefix + "/" + bucket + "/",
	}, nil
}

// Dir returns the directory backing the bucket, for static file serving.
func (b *LocalBucket) Dir() string { return b.dir }

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// Put writes r as a new object.  An existing object with the same name is
// left untouched and ErrObjectExists is returned.
func (b *LocalBucket) Put(ctx context.Context, name string, r io.Reader) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(b.dir, name)
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrObjectExists
		}
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write object: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close object: %w", err)
	}
	return nil
}

// Delete removes an object.  A missing object is not an error.
func (b *LocalBucket) Delete(_ context.Context, name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(b.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL returns the address clients use to fetch the object.
func (b *LocalBucket) PublicURL(name string) string {
	return b.baseURL + url.PathEscape(name)
}

// ObjectName maps a URL produced by PublicURL back to the object name.
func (b *LocalBucket) ObjectName(publicURL string) (string, bool) {
	rest, ok := strings.CutPrefix(publicURL, b.baseURL)
	if !ok {
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil || !validName(name) {
		return "", false
	}
	return name, true
}
