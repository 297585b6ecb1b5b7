package corpus

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirSource is a directory whose regular files are records, one record per
// file. Hidden files and subdirectories are ignored.
type DirSource struct {
	info  Info
	files []string
	order order
}

// OpenDir lists dir. FileOptions.SkipHeader and Cache do not apply.
func OpenDir(dir string, opts FileOptions) (*DirSource, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: list %s: %w", dir, err)
	}
	s := &DirSource{info: Info{Path: dir}}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("corpus: stat %s: %w", e.Name(), err)
		}
		s.files = append(s.files, filepath.Join(dir, e.Name()))
		s.info.Bytes += fi.Size()
		opts.Progress.Tick()
	}
	s.info.Records = len(s.files)
	s.info.Duration = time.Since(start)
	log.Info("corpus: listed", "dir", dir, "records", s.info.Records, "bytes", s.info.Bytes)

	s.order = identity(len(s.files))
	if !opts.Ordered {
		s.order.shuffle(opts.Seed)
	}
	return s, nil
}

func (s *DirSource) Info() Info { return s.info }

func (s *DirSource) Len() int { return len(s.files) }

func (s *DirSource) Shuffle(seed uint64) { s.order.shuffle(seed) }

func (s *DirSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return s.order.visit(ctx, func(i int) ([]byte, error) {
		data, err := os.ReadFile(s.files[i])
		if err != nil {
			return nil, fmt.Errorf("corpus: read %s: %w", s.files[i], err)
		}
		return data, nil
	})
}

func (s *DirSource) Close() error { return nil }

// Open opens path as a DirSource if it is a directory and as a FileSource
// otherwise.
func Open(ctx context.Context, path string, opts FileOptions) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	if fi.IsDir() {
		return OpenDir(path, opts)
	}
	return OpenFile(ctx, path, opts)
}
