package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidFilename = errors.New("invalid filename")

// Retention is told about every file that lands in the storage root.
// Nothing is ever deleted by the service itself; a Retention implementation
// is where an expiry policy would hook in.
type Retention interface {
	Track(ctx context.Context, path string) error
}

type NoRetention struct{}

func (NoRetention) Track(context.Context, string) error { return nil }

// Root is the flat directory holding every downloaded file, each one named
// <token>.<ext>.
type Root struct {
	dir       string
	retention Retention
}

// NewRoot makes sure dir exists and returns a Root backed by it.
func NewRoot(dir string, retention Retention) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	if retention == nil {
		retention = NoRetention{}
	}

	return &Root{dir: abs, retention: retention}, nil
}

func (r *Root) Dir() string { return r.dir }

// Template is the yt-dlp output template for token, the extension is left
// for yt-dlp to fill in.
func (r *Root) Template(token string) string {
	return filepath.Join(r.dir, token+".%(ext)s")
}

func (r *Root) Track(ctx context.Context, path string) error {
	return r.retention.Track(ctx, path)
}

// Resolve maps an untrusted filename to a path directly under the root.
func (r *Root) Resolve(filename string) (string, error) {
	if err := Validate(filename); err != nil {
		return "", err
	}

	path := filepath.Join(r.dir, filename)
	if filepath.Dir(path) != r.dir {
		return "", ErrInvalidFilename
	}

	return path, nil
}

// Validate accepts only names of the form <uuid>.<ext> with an alphanumeric
// extension.
func Validate(filename string) error {
	if filename == "" ||
		strings.ContainsAny(filename, `/\`) ||
		strings.Contains(filename, "..") ||
		strings.ContainsRune(filename, 0) {
		return ErrInvalidFilename
	}

	ext := filepath.Ext(filename)
	if len(ext) < 2 || !isAlnum(ext[1:]) {
		return ErrInvalidFilename
	}

	token := strings.TrimSuffix(filename, ext)
	if len(token) != 36 {
		return ErrInvalidFilename
	}
	if _, err := uuid.Parse(token); err != nil {
		return ErrInvalidFilename
	}

	return nil
}

func isAlnum(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
