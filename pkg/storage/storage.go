// Package storage abstracts where corpora are read from and where generated
// pairs are written to: a local directory or an S3-compatible bucket.
//
// Paths are forward-slash separated and relative to the store root. Open
// turns a user-supplied location (a filesystem path or an s3:// URL) into a
// store plus the path of the object inside it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrBadLocation is returned by ParseLocation for malformed locations.
var ErrBadLocation = errors.New("storage: bad location")

// FileStore is the storage surface used by the corpus fetcher and the output
// writers. Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or truncates the named file. Data is committed when the
	// returned writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Stat returns the size and modification time of the named file, or an
	// error wrapping os.ErrNotExist.
	Stat(ctx context.Context, path string) (Info, error)

	// Delete removes the named file. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error
}

// Info describes a stored file.
type Info struct {
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// Location is a parsed storage location.
type Location struct {
	// Bucket is set for s3:// locations and empty for local paths.
	Bucket string
	// Dir is the directory (local) or key prefix (s3) containing the file.
	Dir string
	// Name is the file name inside Dir.
	Name string
}

// IsS3 reports whether l points into a bucket.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + path.Join(l.Bucket, l.Dir, l.Name)
	}
	return filepath.Join(l.Dir, l.Name)
}

// ParseLocation parses "s3://bucket/prefix/name" or a filesystem path.
func ParseLocation(raw string) (Location, error) {
	if !strings.HasPrefix(raw, "s3://") {
		if raw == "" || strings.HasSuffix(raw, "/") {
			return Location{}, fmt.Errorf("%w: %q does not name a file", ErrBadLocation, raw)
		}
		return Location{Dir: filepath.Dir(raw), Name: filepath.Base(raw)}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrBadLocation, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q needs a bucket and an object key", ErrBadLocation, raw)
	}
	dir, name := path.Split(key)
	return Location{Bucket: u.Host, Dir: strings.TrimSuffix(dir, "/"), Name: name}, nil
}

// Open returns the store holding raw and the path of the file inside it.
// S3 locations use s3cfg with its Bucket and Prefix taken from raw.
func Open(raw string, s3cfg S3Config) (FileStore, string, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, "", err
	}
	if !loc.IsS3() {
		st, err := NewLocal(loc.Dir)
		if err != nil {
			return nil, "", err
		}
		return st, loc.Name, nil
	}
	s3cfg.Bucket = loc.Bucket
	s3cfg.Prefix = loc.Dir
	st, err := NewS3FromConfig(s3cfg)
	if err != nil {
		return nil, "", err
	}
	return st, loc.Name, nil
}
