package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/haivivi/crpairs/pkg/cli"
	"github.com/haivivi/crpairs/pkg/dialog"
	"github.com/haivivi/crpairs/pkg/pairs"
	"github.com/haivivi/crpairs/pkg/pipeline"
	"github.com/haivivi/crpairs/pkg/storage"
)

// defaultBufferCap bounds the derived buffer size.
const defaultBufferCap = 1000

var generateFlags jobFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate context/response pairs from a corpus",
	Long: `Generate labeled context/response pairs from a dialogue corpus.

Every window of context_size consecutive utterances yields num_negative
negative pairs followed by the positive pair. Pairs are written as JSON lines
(or msgpack with --encoding msgpack) to -o, or stdout. The run summary is
printed to stdout, or stderr when pairs go to stdout.

Examples:
  crpairs generate --corpus train.txt -o pairs.jsonl
  crpairs generate --corpus dialogs.jsonl --format json --query '.turns[].text'
  crpairs generate -f job.yaml --passes 3 --reshuffle --seed 42`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := &generateFlags
	f.addCorpus(generateCmd)
	f.addGeneration(generateCmd)
}

// runView is the printed form of a run.
type runView struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Corpus    string `json:"corpus" yaml:"corpus"`
	Output    string `json:"output" yaml:"output"`
	Records   int    `json:"records" yaml:"records"`
	Passes    int    `json:"passes" yaml:"passes"`
	Dialogues int    `json:"dialogues" yaml:"dialogues"`
	Skipped   int    `json:"skipped" yaml:"skipped"`
	Deferred  int    `json:"deferred" yaml:"deferred"`
	Positives int    `json:"positives" yaml:"positives"`
	Negatives int    `json:"negatives" yaml:"negatives"`
	Duration  string `json:"duration" yaml:"duration"`
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	job, err := generateFlags.resolve(cmd.Flags())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dec, err := dialog.NewDecoder(job.Format, dialog.Options{
		Sep:    job.Sep,
		Query:  job.Query,
		Repair: job.Repair,
	})
	if err != nil {
		return err
	}

	cache, err := openIndexCache(job, generateFlags.noCache)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	src, err := openCorpus(ctx, job, cache)
	if err != nil {
		return err
	}
	defer src.Close()

	records := src.Len()
	bufferSize := job.BufferSize
	if bufferSize == 0 {
		bufferSize = min(defaultBufferCap, records)
	}
	b, err := pairs.New[dialog.Utterance](pairs.Config{
		TotalDialogues: records,
		ContextSize:    job.ContextSize,
		BufferSize:     bufferSize,
		NumNegative:    job.NumNegative,
		Seed:           job.Seed,
		Logger:         slog.Default(),
	})
	if err != nil {
		return err
	}
	slog.Debug("builder ready", "builder", b.String())

	out, cleanup, err := openOutput(ctx, job)
	if err != nil {
		return err
	}
	sink, err := pipeline.NewSink(job.Encoding, out)
	if err != nil {
		out.Close()
		cleanup()
		return err
	}

	tracker := newTracker(records * max(job.Passes, 1))
	sum, err := pipeline.Run(ctx, src, dec, b, sink, pipeline.Options{
		Passes:    job.Passes,
		Reshuffle: job.Reshuffle,
		Seed:      job.Seed,
		Strict:    job.Strict,
		Progress:  tracker,
		Logger:    slog.Default(),
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted after %d pairs", sum.Pairs())
		}
		return err
	}

	view := runView{
		RunID:     sum.RunID.String(),
		Corpus:    job.Corpus,
		Output:    job.Output,
		Records:   records,
		Passes:    sum.Passes,
		Dialogues: sum.Dialogues,
		Skipped:   sum.Skipped,
		Deferred:  sum.Deferred,
		Positives: sum.Positives,
		Negatives: sum.Negatives,
		Duration:  cli.FormatDuration(sum.Duration),
	}
	if job.Output == "" {
		view.Output = "-"
		return outputResult(os.Stderr, view)
	}
	return outputResult(os.Stdout, view)
}

// openOutput opens the pairs destination. cleanup removes a partial output
// after a failed run.
func openOutput(ctx context.Context, job cli.JobSpec) (io.WriteCloser, func(), error) {
	if job.Output == "" {
		return nopCloser{os.Stdout}, func() {}, nil
	}
	store, name, err := storage.Open(job.Output, s3Config(job))
	if err != nil {
		return nil, nil, err
	}
	w, err := store.Write(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		// ctx may already be canceled
		if err := store.Delete(context.Background(), name); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove partial output", "output", job.Output, "error", err)
		}
	}
	return w, cleanup, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
