package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/haivivi/crpairs/pkg/kv"
)

// chunkSize is the number of spans per cache entry.
const chunkSize = 1 << 16

// indexMeta is the cache entry describing a stored index.
type indexMeta struct {
	Path    string `msgpack:"path"`
	Records int    `msgpack:"records"`
	Chunks  int    `msgpack:"chunks"`
}

// indexChunk holds consecutive spans in columnar form.
type indexChunk struct {
	Offsets []int64 `msgpack:"o"`
	Lengths []int   `msgpack:"n"`
}

// fingerprint identifies a file version. Any change of size, modification
// time or header skip invalidates the cached index.
func fingerprint(path string, fi fs.FileInfo, skip int) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%d", abs, fi.Size(), fi.ModTime().UnixNano(), skip)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func metaKey(fp string) kv.Key { return kv.Key{"corpus", fp, "meta"} }

func chunkKey(fp string, i int) kv.Key {
	return kv.Key{"corpus", fp, "offsets", fmt.Sprintf("%08d", i)}
}

// loadIndex reads the spans cached under fp. hit is false when the cache is
// nil or holds no complete index.
func loadIndex(ctx context.Context, cache kv.Store, fp string) (spans []span, hit bool, err error) {
	if cache == nil {
		return nil, false, nil
	}
	meta, err := kv.GetValue[indexMeta](ctx, cache, metaKey(fp))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	spans = make([]span, 0, meta.Records)
	for i := range meta.Chunks {
		c, err := kv.GetValue[indexChunk](ctx, cache, chunkKey(fp, i))
		if err != nil {
			return nil, false, fmt.Errorf("corpus: index chunk %d: %w", i, err)
		}
		if len(c.Offsets) != len(c.Lengths) {
			return nil, false, fmt.Errorf("corpus: index chunk %d is inconsistent", i)
		}
		for j, off := range c.Offsets {
			spans = append(spans, span{off: off, n: c.Lengths[j]})
		}
	}
	if len(spans) != meta.Records {
		return nil, false, fmt.Errorf("corpus: cached index has %d records, want %d", len(spans), meta.Records)
	}
	return spans, true, nil
}

// storeIndex replaces whatever is cached under fp with spans. Chunks are
// written before the meta entry so a partial write is never a hit.
func storeIndex(ctx context.Context, cache kv.Store, fp, path string, spans []span) error {
	if cache == nil {
		return nil
	}
	if err := cache.DeletePrefix(ctx, kv.Key{"corpus", fp}); err != nil {
		return err
	}
	chunks := 0
	for start := 0; start < len(spans); start += chunkSize {
		part := spans[start:min(start+chunkSize, len(spans))]
		c := indexChunk{Offsets: make([]int64, len(part)), Lengths: make([]int, len(part))}
		for j, sp := range part {
			c.Offsets[j], c.Lengths[j] = sp.off, sp.n
		}
		if err := kv.SetValue(ctx, cache, chunkKey(fp, chunks), c); err != nil {
			return err
		}
		chunks++
	}
	return kv.SetValue(ctx, cache, metaKey(fp), indexMeta{Path: path, Records: len(spans), Chunks: chunks})
}

// ForgetIndexes drops every cached corpus index.
func ForgetIndexes(ctx context.Context, cache kv.Store) error {
	return cache.DeletePrefix(ctx, kv.Key{"corpus"})
}
