package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/crpairs/pkg/corpus"
	"github.com/haivivi/crpairs/pkg/dialog"
	"github.com/haivivi/crpairs/pkg/pairs"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource yields n JSON dialogues of five utterances. Utterances are
// unique per pass so consecutive passes never share text.
type fakeSource struct {
	n     int
	bad   map[int]bool
	pass  int
	seeds []uint64
}

func (s *fakeSource) Len() int { return s.n }

func (s *fakeSource) Records(ctx context.Context) iter.Seq2[corpus.Record, error] {
	pass := s.pass
	s.pass++
	return func(yield func(corpus.Record, error) bool) {
		for i := range s.n {
			if err := ctx.Err(); err != nil {
				yield(corpus.Record{}, err)
				return
			}
			data := []byte("not json")
			if !s.bad[i] {
				var us []string
				for j := range 5 {
					us = append(us, fmt.Sprintf("p%dd%du%d", pass, i, j))
				}
				data, _ = json.Marshal(us)
			}
			if !yield(corpus.Record{Index: i, Data: data}, nil) {
				return
			}
		}
	}
}

func (s *fakeSource) Shuffle(seed uint64) { s.seeds = append(s.seeds, seed) }
func (s *fakeSource) Info() corpus.Info   { return corpus.Info{Records: s.n} }
func (s *fakeSource) Close() error        { return nil }

func newBuilder(t *testing.T, total int) *pairs.Builder[dialog.Utterance] {
	t.Helper()
	b, err := pairs.New[dialog.Utterance](pairs.Config{
		TotalDialogues: total,
		ContextSize:    2,
		BufferSize:     3,
		NumNegative:    1,
		Seed:           1,
		Logger:         quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func jsonDecoder(t *testing.T) dialog.Decoder {
	t.Helper()
	d, err := dialog.NewDecoder(dialog.FormatJSON, dialog.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRunFileCorpus(t *testing.T) {
	var lines []string
	for i := range 10 {
		var us []string
		for j := range 5 {
			us = append(us, fmt.Sprintf("d%du%d", i, j))
		}
		lines = append(lines, strings.Join(us, " __eou__ "))
	}
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := corpus.OpenFile(context.Background(), path, corpus.FileOptions{Seed: 3, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	var out bytes.Buffer
	sum, err := Run(context.Background(), src, &dialog.DelimitedDecoder{}, newBuilder(t, 10), NewJSONLSink(&out), Options{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Passes != 1 || sum.Dialogues != 10 || sum.Decoded != 10 || sum.Skipped != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Positives != 30 || sum.Negatives != 30 || sum.Pairs() != 60 {
		t.Errorf("pairs: %+v", sum)
	}
	if sum.RunID.String() == "" || sum.Duration <= 0 {
		t.Errorf("run metadata: %+v", sum)
	}

	sc := bufio.NewScanner(&out)
	n, positives := 0, 0
	for sc.Scan() {
		var p Pair
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
		if len(p.Context) != 2 {
			t.Errorf("line %d: context %v", n, p.Context)
		}
		if p.Positive() {
			positives++
		}
		n++
	}
	if n != 60 || positives != 30 {
		t.Errorf("lines=%d positives=%d", n, positives)
	}
}

func TestRunPassesAndReshuffle(t *testing.T) {
	src := &fakeSource{n: 10}
	var out bytes.Buffer
	sum, err := Run(context.Background(), src, jsonDecoder(t), newBuilder(t, 10), NewJSONLSink(&out), Options{
		Passes:    3,
		Reshuffle: true,
		Seed:      5,
		QueueSize: 4,
		Logger:    quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Passes != 3 || sum.Dialogues != 30 || sum.Pairs() != 180 {
		t.Errorf("summary = %+v", sum)
	}
	if fmt.Sprint(src.seeds) != "[6 7]" {
		t.Errorf("shuffle seeds = %v", src.seeds)
	}
	if got := strings.Count(out.String(), "\n"); got != 180 {
		t.Errorf("lines = %d", got)
	}
}

func TestRunSkipsBadRecords(t *testing.T) {
	src := &fakeSource{n: 10, bad: map[int]bool{5: true}}
	sum, err := Run(context.Background(), src, jsonDecoder(t), newBuilder(t, 10), NewJSONLSink(io.Discard), Options{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Dialogues != 10 || sum.Decoded != 9 || sum.Skipped != 1 || sum.Positives != 27 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunStrict(t *testing.T) {
	src := &fakeSource{n: 10, bad: map[int]bool{5: true}}
	_, err := Run(context.Background(), src, jsonDecoder(t), newBuilder(t, 10), NewJSONLSink(io.Discard), Options{Strict: true, Logger: quiet()})
	if !errors.Is(err, dialog.ErrBadRecord) {
		t.Fatalf("err=%v, want ErrBadRecord", err)
	}
}

func TestRunPassMismatch(t *testing.T) {
	_, err := Run(context.Background(), &fakeSource{n: 9}, jsonDecoder(t), newBuilder(t, 10), NewJSONLSink(io.Discard), Options{Logger: quiet()})
	if !errors.Is(err, ErrPassMismatch) {
		t.Fatalf("err=%v, want ErrPassMismatch", err)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &fakeSource{n: 10}, jsonDecoder(t), newBuilder(t, 10), NewJSONLSink(io.Discard), Options{Logger: quiet()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

type failingSink struct {
	after int
	n     int
}

var errDiskFull = errors.New("disk full")

func (s *failingSink) Write(Pair) error {
	if s.n == s.after {
		return errDiskFull
	}
	s.n++
	return nil
}

func (s *failingSink) Close() error { return nil }

func TestRunSinkError(t *testing.T) {
	sink := &failingSink{after: 3}
	sum, err := Run(context.Background(), &fakeSource{n: 10}, jsonDecoder(t), newBuilder(t, 10), sink, Options{QueueSize: 1, Logger: quiet()})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("err=%v, want errDiskFull", err)
	}
	if sum.Pairs() != 3 {
		t.Errorf("pairs written = %d", sum.Pairs())
	}
}

type staticSource struct {
	fakeSource
	records [][]string
}

func (s *staticSource) Len() int { return len(s.records) }

func (s *staticSource) Records(context.Context) iter.Seq2[corpus.Record, error] {
	return func(yield func(corpus.Record, error) bool) {
		for i, r := range s.records {
			data, _ := json.Marshal(r)
			if !yield(corpus.Record{Index: i, Data: data}, nil) {
				return
			}
		}
	}
}

func TestRunBuilderError(t *testing.T) {
	b, err := pairs.New[dialog.Utterance](pairs.Config{TotalDialogues: 2, ContextSize: 1, BufferSize: 2, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	src := &staticSource{records: [][]string{{"a", "a"}, {"a", "a"}}}
	_, err = Run(context.Background(), src, jsonDecoder(t), b, NewJSONLSink(io.Discard), Options{Logger: quiet()})
	if !errors.Is(err, pairs.ErrSamplingDeadlock) {
		t.Fatalf("err=%v, want ErrSamplingDeadlock", err)
	}
}

func TestRunReportsDeferred(t *testing.T) {
	// Two negatives per window drain the pool every other dialogue, so the
	// odd dialogues stay deferred and the last one never triggers a flush.
	var records [][]string
	for i := range 9 {
		records = append(records, []string{fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i), fmt.Sprintf("c%d", i)})
	}
	b, err := pairs.New[dialog.Utterance](pairs.Config{
		TotalDialogues: 9,
		ContextSize:    1,
		BufferSize:     5,
		NumNegative:    2,
		Logger:         quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}
	src := &staticSource{records: records}
	sum, err := Run(context.Background(), src, jsonDecoder(t), b, NewJSONLSink(io.Discard), Options{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Dialogues != 9 || sum.Positives != 8 {
		t.Errorf("dialogues=%d positives=%d, want 9 and 8", sum.Dialogues, sum.Positives)
	}
	if sum.Deferred != 5 || sum.Deferred != b.Stats().Deferred {
		t.Errorf("Deferred = %d, builder holds %d, want 5", sum.Deferred, b.Stats().Deferred)
	}
}
