// Package pipeline drives a pair Builder over a corpus for one or more
// passes and streams the pairs to a Sink.
//
// Generation runs in a producer goroutine that reads records, decodes them
// and pulls pairs from the Builder; the calling goroutine writes them to the
// sink. The two sides meet in a bounded buffer, so a slow sink throttles
// generation. The Builder itself is only touched by the producer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/crpairs/pkg/buffer"
	"github.com/haivivi/crpairs/pkg/corpus"
	"github.com/haivivi/crpairs/pkg/dialog"
	"github.com/haivivi/crpairs/pkg/pairs"
	"github.com/haivivi/crpairs/pkg/progress"
)

// ErrPassMismatch is returned when the Builder's pass length differs from
// the number of records in the source.
var ErrPassMismatch = errors.New("pipeline: total_dialogues does not match corpus size")

// DefaultQueueSize is the pair buffer size used when Options.QueueSize is
// not positive.
const DefaultQueueSize = 1024

// Options configures Run.
type Options struct {
	// Passes is the number of passes over the corpus. Zero means 1.
	Passes int
	// Reshuffle re-permutes the source before every pass after the first,
	// with seed Seed+pass.
	Reshuffle bool
	Seed      uint64
	// Strict aborts on undecodable records instead of skipping them.
	Strict    bool
	QueueSize int
	// Progress is ticked once per dialogue. Optional.
	Progress *progress.Tracker
	Logger   *slog.Logger
}

// Summary reports what a run produced.
type Summary struct {
	RunID     uuid.UUID     `json:"run_id" yaml:"run_id"`
	Passes    int           `json:"passes" yaml:"passes"`
	Dialogues int           `json:"dialogues" yaml:"dialogues"`
	Decoded   int           `json:"decoded" yaml:"decoded"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Positives int           `json:"positives" yaml:"positives"`
	Negatives int           `json:"negatives" yaml:"negatives"`
	// Deferred counts dialogues still held back by the builder when the
	// run ended. They produced no pairs.
	Deferred  int           `json:"deferred" yaml:"deferred"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Pairs returns the number of pairs written.
func (s Summary) Pairs() int { return s.Positives + s.Negatives }

// Run generates pairs from src and writes them to sink. The sink is closed
// (flushed) before Run returns successfully. On error the summary counts
// what was written up to the failure.
func Run(ctx context.Context, src corpus.Source, dec dialog.Decoder, b *pairs.Builder[dialog.Utterance], sink Sink, opts Options) (Summary, error) {
	sum := Summary{RunID: uuid.New()}
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", sum.RunID)
	if opts.Passes <= 0 {
		opts.Passes = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if total := b.Config().TotalDialogues; total != src.Len() {
		return sum, fmt.Errorf("%w: total_dialogues=%d, records=%d", ErrPassMismatch, total, src.Len())
	}

	q := buffer.BlockN[Pair](opts.QueueSize)
	p := &producer{src: src, dec: dec, b: b, q: q, opts: opts, log: log}
	done := make(chan error, 1)
	go func() {
		err := p.run(ctx)
		if err != nil {
			q.CloseWithError(err)
		} else {
			q.CloseWrite()
		}
		done <- err
	}()

	var werr error
	for {
		pair, err := q.Next()
		if err != nil {
			break
		}
		if werr = sink.Write(pair); werr != nil {
			werr = fmt.Errorf("pipeline: write pair: %w", werr)
			q.CloseWithError(werr)
			break
		}
		if pair.Positive() {
			sum.Positives++
		} else {
			sum.Negatives++
		}
	}
	perr := <-done

	sum.Passes = p.passes
	sum.Dialogues = p.dialogues
	sum.Decoded = p.dialogues - p.skipped
	sum.Skipped = p.skipped
	sum.Deferred = b.Stats().Deferred
	sum.Duration = time.Since(start)
	opts.Progress.Done()

	switch {
	case werr != nil:
		return sum, werr
	case perr != nil:
		return sum, perr
	}
	if err := sink.Close(); err != nil {
		return sum, fmt.Errorf("pipeline: flush: %w", err)
	}
	if sum.Deferred > 0 {
		log.Warn("pipeline: dialogues left deferred, no pairs written for them",
			"deferred", sum.Deferred,
			"hint", "raise buffer_size or lower num_negative")
	}
	log.Info("pipeline: done",
		"passes", sum.Passes,
		"dialogues", sum.Dialogues,
		"skipped", sum.Skipped,
		"deferred", sum.Deferred,
		"pairs", sum.Pairs(),
		"duration", sum.Duration)
	return sum, nil
}

type producer struct {
	src  corpus.Source
	dec  dialog.Decoder
	b    *pairs.Builder[dialog.Utterance]
	q    *buffer.BlockBuffer[Pair]
	opts Options
	log  *slog.Logger

	passes    int
	dialogues int
	skipped   int
}

func (p *producer) run(ctx context.Context) error {
	for pass := range p.opts.Passes {
		if pass > 0 && p.opts.Reshuffle {
			p.src.Shuffle(p.opts.Seed + uint64(pass))
		}
		p.log.Debug("pipeline: pass started", "pass", pass+1, "records", p.src.Len())
		for rec, err := range p.src.Records(ctx) {
			if err != nil {
				return fmt.Errorf("pipeline: pass %d: %w", pass+1, err)
			}
			d, err := p.dec.Decode(rec.Data)
			if err != nil {
				if p.opts.Strict {
					return fmt.Errorf("pipeline: record %d: %w", rec.Index, err)
				}
				// An empty dialogue keeps the builder's pass counter in
				// step with the record count.
				p.log.Warn("pipeline: skipping record", "index", rec.Index, "error", err)
				p.skipped++
				d = nil
			}
			for pair, err := range p.b.Process(d) {
				if err != nil {
					return fmt.Errorf("pipeline: record %d: %w", rec.Index, err)
				}
				if err := p.q.Add(pair); err != nil {
					return err
				}
			}
			p.dialogues++
			p.opts.Progress.Tick()
		}
		p.passes++
	}
	return nil
}
