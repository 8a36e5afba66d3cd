// Package storage keeps uploaded blobs such as avatars and task attachments.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
	ErrTooLarge   = errors.New("blob exceeds size limit")
)

// Object describes a stored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is a minimal blob store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Stat(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// sniffLen is how much of the head of a blob is kept for content detection.
const sniffLen = 3072

// Local stores blobs as files below a root directory.
type Local struct {
	root     string
	maxBytes int64
}

var _ Store = (*Local)(nil)

// NewLocal creates root if needed. maxBytes <= 0 means unlimited.
func NewLocal(root string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: root, maxBytes: maxBytes}, nil
}

// CleanKey normalizes key to a slash-separated relative path and rejects
// anything that would escape the store.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func (l *Local) path(key string) (string, string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(l.root, filepath.FromSlash(k)), nil
}

// Put writes r under key, replacing any existing blob. Writes go to a
// temporary file first so readers never observe a partial blob.
func (l *Local) Put(ctx context.Context, key string, r io.Reader) (Object, error) {
	k, p, err := l.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if l.maxBytes > 0 {
		src = io.LimitReader(r, l.maxBytes+1)
	}
	head := &headBuffer{limit: sniffLen}
	n, err := io.Copy(tmp, io.TeeReader(src, head))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write blob: %w", err)
	}
	if l.maxBytes > 0 && n > l.maxBytes {
		return Object{}, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return Object{}, fmt.Errorf("commit blob: %w", err)
	}

	return Object{Key: k, Size: n, ContentType: mimetype.Detect(head.Bytes()).String()}, nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	obj, err := l.Stat(ctx, key)
	if err != nil {
		return nil, Object{}, err
	}
	_, p, _ := l.path(key)
	f, err := os.Open(p)
	if err != nil {
		return nil, Object{}, fmt.Errorf("open blob: %w", err)
	}
	return f, obj, nil
}

func (l *Local) Stat(ctx context.Context, key string) (Object, error) {
	k, p, err := l.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, fmt.Errorf("stat blob: %w", err)
	}
	if fi.IsDir() {
		return Object{}, ErrNotFound
	}
	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return Object{}, fmt.Errorf("detect content type: %w", err)
	}
	return Object{Key: k, Size: fi.Size(), ContentType: mt.String()}, nil
}

// Delete is a no-op for missing blobs.
func (l *Local) Delete(ctx context.Context, key string) error {
	_, p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// headBuffer keeps the first limit bytes written to it.
type headBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - h.buf.Len(); room > 0 {
		if len(p) > room {
			h.buf.Write(p[:room])
		} else {
			h.buf.Write(p)
		}
	}
	return len(p), nil
}

func (h *headBuffer) Bytes() []byte { return h.buf.Bytes() }
