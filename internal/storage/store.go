// Package storage writes generated artifacts to object storage and issues
// signed direct-upload URLs.
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// ErrSigningUnsupported is returned by drivers that cannot presign writes.
var ErrSigningUnsupported = errors.New("storage: signed urls not supported by this driver")

// Object is a single write.
type Object struct {
	Bucket      string
	Name        string
	ContentType string
	Data        []byte
	Public      bool
}

// ObjectStore persists objects and resolves their public read URL.
type ObjectStore interface {
	Write(ctx context.Context, obj Object) error
	PublicURL(bucket, name string) string
}

// URLSigner presigns a write of one object. No bytes are written.
type URLSigner interface {
	SignedWriteURL(ctx context.Context, bucket, name, contentType string, expiry time.Duration) (string, error)
	PublicURL(bucket, name string) string
}

// joinPublicURL renders <base>/<bucket>/<name> escaping each path segment.
func joinPublicURL(base, bucket, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
