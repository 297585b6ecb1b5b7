package corpus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/crpairs/pkg/kv"
	"github.com/haivivi/crpairs/pkg/progress"
	"github.com/haivivi/crpairs/pkg/storage"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, s Source) []string {
	t.Helper()
	var out []string
	for rec, err := range s.Records(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(rec.Data))
	}
	return out
}

func TestFileSourceIndex(t *testing.T) {
	tests := []struct {
		name    string
		content string
		skip    int
		want    []string
	}{
		{"plain", "a\nb\nc\n", 0, []string{"a", "b", "c"}},
		{"no trailing newline", "a\nb", 0, []string{"a", "b"}},
		{"blank lines", "\na\n\n  \t\nb\n\n", 0, []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", 0, []string{"a", "b"}},
		{"first line kept", "first\nsecond\n", 0, []string{"first", "second"}},
		{"skip header", "id,text\na\nb\n", 1, []string{"a", "b"}},
		{"skip counts blank lines", "\nhdr\na\n", 2, []string{"a"}},
		{"empty", "", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenFile(context.Background(), writeFile(t, tt.content), FileOptions{
				SkipHeader: tt.skip,
				Ordered:    true,
				Logger:     quiet(),
			})
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if s.Len() != len(tt.want) {
				t.Errorf("Len = %d, want %d", s.Len(), len(tt.want))
			}
			if got := readAll(t, s); !slices.Equal(got, tt.want) {
				t.Errorf("records = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileSourceLongLines(t *testing.T) {
	long := strings.Repeat("x", 3<<20)
	s, err := OpenFile(context.Background(), writeFile(t, "a\n"+long+"\nb\n"), FileOptions{Ordered: true, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got := readAll(t, s)
	if len(got) != 3 || got[0] != "a" || got[1] != long || got[2] != "b" {
		t.Fatalf("records: %d, lens %d", len(got), len(got[1]))
	}
}

func TestFileSourceShuffle(t *testing.T) {
	var lines []string
	for i := range 50 {
		lines = append(lines, strings.Repeat("r", i+1))
	}
	path := writeFile(t, strings.Join(lines, "\n"))
	open := func(seed uint64) *FileSource {
		s, err := OpenFile(context.Background(), path, FileOptions{Seed: seed, Logger: quiet()})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}

	a, b, c := readAll(t, open(1)), readAll(t, open(1)), readAll(t, open(2))
	if !slices.Equal(a, b) {
		t.Error("same seed produced different orders")
	}
	if slices.Equal(a, c) {
		t.Error("different seeds produced the same order")
	}
	if slices.Equal(a, lines) {
		t.Error("records not shuffled")
	}
	sorted := slices.Clone(a)
	slices.SortFunc(sorted, func(x, y string) int { return len(x) - len(y) })
	if !slices.Equal(sorted, lines) {
		t.Error("shuffle lost or duplicated records")
	}

	s := open(1)
	s.Shuffle(2)
	if !slices.Equal(readAll(t, s), c) {
		t.Error("Shuffle(2) differs from opening with seed 2")
	}
}

func TestShuffleIgnoresPriorOrder(t *testing.T) {
	want := identity(8)
	want.shuffle(2)

	got := identity(8)
	got.shuffle(1)
	got.shuffle(2)
	if !slices.Equal(got, want) {
		t.Errorf("shuffle(1) then shuffle(2) = %v, want %v", got, want)
	}
}

func TestFileSourceProgress(t *testing.T) {
	var out bytes.Buffer
	p := progress.New(&out, progress.Options{Rate: 2})
	s, err := OpenFile(context.Background(), writeFile(t, "a\nb\n\nc\nd\n"), FileOptions{Progress: p, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if p.Count() != 4 {
		t.Errorf("ticks = %d, want 4", p.Count())
	}
	if strings.Count(out.String(), "Progress:") != 2 {
		t.Errorf("output = %q", out.String())
	}
}

func TestFileSourceClosed(t *testing.T) {
	s, err := OpenFile(context.Background(), writeFile(t, "a\n"), FileOptions{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := s.Read(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close: %v", err)
	}
	if _, err := s.Read(5); err == nil {
		t.Error("out of range read succeeded")
	}
}

func TestRecordsStopsOnCancel(t *testing.T) {
	s, err := OpenFile(context.Background(), writeFile(t, "a\nb\nc\n"), FileOptions{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := 0
	var gotErr error
	for _, err := range s.Records(ctx) {
		if err != nil {
			gotErr = err
			break
		}
		n++
		cancel()
	}
	if n != 1 || !errors.Is(gotErr, context.Canceled) {
		t.Errorf("n=%d err=%v", n, gotErr)
	}
}

func TestIndexCache(t *testing.T) {
	ctx := context.Background()
	cache := kv.NewMemory(nil)
	path := writeFile(t, "a\n\nb\nc\n")

	first, err := OpenFile(ctx, path, FileOptions{Cache: cache, Ordered: true, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	if first.Info().Cached {
		t.Error("first open reported a cache hit")
	}

	// A tracker ticks only during a scan.
	p := progress.New(io.Discard, progress.Options{})
	second, err := OpenFile(ctx, path, FileOptions{Cache: cache, Ordered: true, Progress: p, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if !second.Info().Cached || p.Count() != 0 {
		t.Errorf("second open: cached=%v ticks=%d", second.Info().Cached, p.Count())
	}
	if got := readAll(t, second); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("records from cache = %q", got)
	}

	// A different header skip is a different index.
	third, err := OpenFile(ctx, path, FileOptions{Cache: cache, SkipHeader: 1, Ordered: true, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer third.Close()
	if third.Info().Cached || third.Len() != 2 {
		t.Errorf("skip=1: cached=%v len=%d", third.Info().Cached, third.Len())
	}

	if err := ForgetIndexes(ctx, cache); err != nil {
		t.Fatal(err)
	}
	n := 0
	for range cache.List(ctx, nil) {
		n++
	}
	if n != 0 {
		t.Errorf("%d entries left after ForgetIndexes", n)
	}
}

func TestIndexCacheChunks(t *testing.T) {
	ctx := context.Background()
	cache := kv.NewMemory(nil)
	spans := make([]span, chunkSize+3)
	for i := range spans {
		spans[i] = span{off: int64(i * 2), n: 1}
	}
	if err := storeIndex(ctx, cache, "fp", "x", spans); err != nil {
		t.Fatal(err)
	}
	got, hit, err := loadIndex(ctx, cache, "fp")
	if err != nil || !hit {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
	if !slices.Equal(got, spans) {
		t.Error("spans differ after round trip through two chunks")
	}

	if err := cache.DeletePrefix(ctx, chunkKey("fp", 1)); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := loadIndex(ctx, cache, "fp"); hit || err == nil {
		t.Errorf("missing chunk: hit=%v err=%v", hit, err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.txt":   "one __eou__ two",
		"b.txt":   "three",
		".hidden": "x",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	src, err := Open(context.Background(), dir, FileOptions{Ordered: true, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if _, ok := src.(*DirSource); !ok {
		t.Fatalf("Open(dir) = %T", src)
	}
	if got := readAll(t, src); !slices.Equal(got, []string{"one __eou__ two", "three"}) {
		t.Errorf("records = %q", got)
	}
	if info := src.Info(); info.Records != 2 || info.Bytes != int64(len("one __eou__ two")+len("three")) {
		t.Errorf("info = %+v", info)
	}
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	remote, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := remote.Write(ctx, "ubuntu/train.txt")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "a\nb\n")
	w.Close()

	dir := t.TempDir()
	local, err := Fetch(ctx, remote, "ubuntu/train.txt", dir)
	if err != nil {
		t.Fatal(err)
	}
	if local != filepath.Join(dir, "ubuntu", "train.txt") {
		t.Errorf("local = %q", local)
	}
	data, err := os.ReadFile(local)
	if err != nil || string(data) != "a\nb\n" {
		t.Fatalf("fetched %q, %v", data, err)
	}

	// A copy with matching size and mtime is not downloaded again.
	info, err := remote.Stat(ctx, "ubuntu/train.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("x\ny\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(local, info.ModTime, info.ModTime); err != nil {
		t.Fatal(err)
	}
	if _, err := Fetch(ctx, remote, "ubuntu/train.txt", dir); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(local); string(data) != "x\ny\n" {
		t.Errorf("up-to-date copy was replaced: %q", data)
	}

	if _, err := Fetch(ctx, remote, "missing.txt", dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing object: %v", err)
	}
}
