package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/haivivi/crpairs/pkg/kv"
	"github.com/haivivi/crpairs/pkg/progress"
)

// FileOptions configures OpenFile.
type FileOptions struct {
	// SkipHeader is the number of leading lines (blank or not) to ignore.
	SkipHeader int

	// Seed fixes the initial record order. Ignored when Ordered is set.
	Seed uint64

	// Ordered keeps records in file order until Shuffle is called.
	Ordered bool

	// Cache stores the offset index between runs. Optional.
	Cache kv.Store

	// Progress is ticked once per indexed record. Optional.
	Progress *progress.Tracker

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// span locates one record inside the file, without its line terminator.
type span struct {
	off int64
	n   int
}

// FileSource is a newline-delimited corpus file. Blank lines are not
// records. A FileSource is safe for concurrent reads, but Shuffle must not
// run while a Records sequence is being iterated.
type FileSource struct {
	info  Info
	spans []span
	order order

	mu     sync.RWMutex
	f      *os.File
	closed bool
}

// OpenFile opens path and builds its record index, from opts.Cache when
// the cached index matches the file, otherwise with a single linear scan.
func OpenFile(ctx context.Context, path string, opts FileOptions) (*FileSource, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("corpus: stat: %w", err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("corpus: %s is not a regular file", path)
	}

	fp := fingerprint(path, fi, opts.SkipHeader)
	spans, hit, err := loadIndex(ctx, opts.Cache, fp)
	if err != nil {
		log.Warn("corpus: ignoring unreadable index cache", "path", path, "error", err)
	}
	start := time.Now()
	if hit {
		log.Debug("corpus: index cache hit", "path", path, "records", len(spans))
	} else {
		spans, err = scan(ctx, f, opts.SkipHeader, opts.Progress)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("corpus: index %s: %w", path, err)
		}
		log.Info("corpus: indexed", "path", path, "records", len(spans), "bytes", fi.Size(), "duration", time.Since(start))
		if err := storeIndex(ctx, opts.Cache, fp, path, spans); err != nil {
			log.Warn("corpus: index cache not saved", "path", path, "error", err)
		}
	}

	s := &FileSource{
		info: Info{
			Path:     path,
			Records:  len(spans),
			Bytes:    fi.Size(),
			Cached:   hit,
			Duration: time.Since(start),
		},
		spans: spans,
		order: identity(len(spans)),
		f:     f,
	}
	if !opts.Ordered {
		s.order.shuffle(opts.Seed)
	}
	return s, nil
}

// Info describes an indexed corpus.
type Info struct {
	Path     string        `json:"path" yaml:"path"`
	Records  int           `json:"records" yaml:"records"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Cached   bool          `json:"cached" yaml:"cached"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Info reports the size of the corpus and how its index was obtained.
func (s *FileSource) Info() Info { return s.info }

func (s *FileSource) Len() int { return len(s.spans) }

func (s *FileSource) Shuffle(seed uint64) { s.order.shuffle(seed) }

func (s *FileSource) Records(ctx context.Context) iter.Seq2[Record, error] {
	return s.order.visit(ctx, s.Read)
}

// Read returns the record at storage index i.
func (s *FileSource) Read(i int) ([]byte, error) {
	if i < 0 || i >= len(s.spans) {
		return nil, fmt.Errorf("corpus: record %d out of range [0, %d)", i, len(s.spans))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	sp := s.spans[i]
	buf := make([]byte, sp.n)
	if _, err := s.f.ReadAt(buf, sp.off); err != nil {
		return nil, fmt.Errorf("corpus: read record %d: %w", i, err)
	}
	return buf, nil
}

func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// scan records the span of every non-blank line after the first skip lines.
// Line terminators ("\n" or "\r\n") are not part of a span.
func scan(ctx context.Context, r io.Reader, skip int, p *progress.Tracker) ([]span, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var (
		spans []span
		off   int64
	)
	for line := 1; ; line++ {
		l, err := readLine(br)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if l.n == 0 {
			break
		}
		if line%4096 == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
		}
		if line > skip && !l.blank {
			spans = append(spans, span{off: off, n: l.body})
			p.Tick()
		}
		off += int64(l.n)
		if err == io.EOF {
			break
		}
	}
	return spans, nil
}

type lineInfo struct {
	n     int  // bytes consumed, terminator included
	body  int  // bytes before the terminator
	blank bool // only ASCII whitespace
}

// readLine consumes one line from br. err is io.EOF when the input ended,
// possibly after a final unterminated line.
func readLine(br *bufio.Reader) (lineInfo, error) {
	l := lineInfo{blank: true}
	var last, prev byte
	for {
		frag, err := br.ReadSlice('\n')
		l.n += len(frag)
		for _, c := range frag {
			switch c {
			case ' ', '\t', '\n', '\r', '\v', '\f':
			default:
				l.blank = false
			}
		}
		if k := len(frag); k >= 2 {
			prev, last = frag[k-2], frag[k-1]
		} else if k == 1 {
			prev, last = last, frag[0]
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		l.body = l.n
		if last == '\n' && l.n > 0 {
			l.body--
			if prev == '\r' && l.n > 1 {
				l.body--
			}
		}
		return l, err
	}
}
