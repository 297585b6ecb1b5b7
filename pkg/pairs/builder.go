package pairs

import (
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"slices"
)

// State is the phase of the pair generation protocol.
type State int

const (
	// StateWarmup means the pool has not reached capacity yet.
	StateWarmup State = iota
	// StateSteady means pairs are produced normally.
	StateSteady
	// StateFlush means deferred dialogues are being replayed.
	StateFlush
)

func (s State) String() string {
	switch s {
	case StateWarmup:
		return "warmup"
	case StateSteady:
		return "steady"
	case StateFlush:
		return "flush"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stats is a snapshot of a Builder's internal state.
type Stats struct {
	State     State `json:"state" yaml:"state"`
	Pool      int   `json:"pool" yaml:"pool"`
	Capacity  int   `json:"capacity" yaml:"capacity"`
	Deferred  int   `json:"deferred" yaml:"deferred"`
	Pending   int   `json:"pending" yaml:"pending"`
	Counter   int   `json:"counter" yaml:"counter"`
	Positives int   `json:"positives" yaml:"positives"`
	Negatives int   `json:"negatives" yaml:"negatives"`
}

// Builder produces labeled pairs from dialogues, one dialogue per Process
// call, across any number of passes.
type Builder[U comparable] struct {
	cfg  Config
	log  *slog.Logger
	pool *Pool[U]

	deferred [][]U // dialogues consumed during warmup, replayed on flush
	pending  []U   // carry-over inserted into the pool on the next call
	counter  int   // calls since the last flush, replays included
	state    State
	warm     bool

	positives int
	negatives int
}

// New validates cfg and returns a Builder in the warmup state.
func New[U comparable](cfg Config) (*Builder[U], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	return &Builder[U]{
		cfg:  cfg,
		log:  cfg.Logger,
		pool: NewPool[U](cfg.BufferSize, rng),
	}, nil
}

// Config returns the configuration the Builder was created with, with
// defaults applied.
func (b *Builder[U]) Config() Config { return b.cfg }

// State returns the phase of the most recent protocol step.
func (b *Builder[U]) State() State { return b.state }

// Stats returns a snapshot of the Builder's counters and pool occupancy.
func (b *Builder[U]) Stats() Stats {
	return Stats{
		State:     b.state,
		Pool:      b.pool.Len(),
		Capacity:  b.pool.Cap(),
		Deferred:  len(b.deferred),
		Pending:   len(b.pending),
		Counter:   b.counter,
		Positives: b.positives,
		Negatives: b.negatives,
	}
}

func (b *Builder[U]) String() string {
	return fmt.Sprintf("pairs.Builder{pool: %d, context_size: %d, buffer_size: %d, num_negative: %d, deferred: %d}",
		b.pool.Len(), b.cfg.ContextSize, b.cfg.BufferSize, b.cfg.NumNegative, len(b.deferred))
}

// Process feeds dialogue d to the Builder and returns the pairs it yields.
//
// The sequence is lazy: d is consumed when iteration starts, and pairs are
// generated as the caller pulls them. It can be iterated once; later
// iterations yield nothing. A non-nil error ends the sequence and leaves the
// Builder in an unspecified state. Stopping early simply abandons the
// remaining pairs of this call.
//
// The caller must drain (or abandon) one sequence before calling Process
// again.
func (b *Builder[U]) Process(d []U) iter.Seq2[Pair[U], error] {
	used := false
	return func(yield func(Pair[U], error) bool) {
		if used {
			return
		}
		used = true

		// Replays run depth first, in the order a recursive re-invocation
		// would visit them.
		queue := [][]U{d}
		flushing := 0
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			replaying := flushing > 0
			if replaying {
				flushing--
			}

			replay, phase := b.step(cur)
			switch phase {
			case StateWarmup:
				b.state = StateWarmup
				continue
			case StateFlush:
				b.state = StateFlush
				b.log.Info("pairs: flushing deferred dialogues", "replay", len(replay))
				queue = append(replay, queue...)
				flushing += len(replay)
				continue
			}

			if replaying {
				b.state = StateFlush
			} else {
				b.state = StateSteady
			}
			if !b.emit(cur, yield) {
				return
			}
		}
		if b.state == StateFlush {
			b.state = StateSteady
		}
	}
}

// Collect runs Process for d and gathers every pair it yields.
func (b *Builder[U]) Collect(d []U) ([]Pair[U], error) {
	var out []Pair[U]
	for p, err := range b.Process(d) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// step runs the bookkeeping part of one protocol call for d and reports
// which phase d landed in. On flush it returns the dialogues to replay.
func (b *Builder[U]) step(d []U) ([][]U, State) {
	b.counter++

	room := b.pool.Cap() - b.pool.Len()
	for _, u := range b.pending[:min(len(b.pending), room)] {
		b.pool.Push(u)
	}
	b.pending = carryOver(d, b.cfg.ContextSize, b.cfg.NumNegative)

	if !b.pool.Full() {
		for i := len(d) - 1; i >= 0 && !b.pool.Full(); i-- {
			b.pool.Push(d[i])
		}
		b.deferred = append(b.deferred, slices.Clone(d))
		b.log.Debug("pairs: dialogue deferred", "pool", b.pool.Len(), "deferred", len(b.deferred))
		return nil, StateWarmup
	}

	if !b.warm {
		b.warm = true
		b.log.Debug("pairs: warmup complete", "pool", b.pool.Len(), "deferred", len(b.deferred))
	}

	if b.counter >= b.cfg.TotalDialogues {
		replay := make([][]U, 0, len(b.deferred)+1)
		replay = append(replay, d)
		replay = append(replay, b.deferred...)
		b.deferred = nil
		b.counter = 0
		return replay, StateFlush
	}
	return nil, StateSteady
}

// emit yields the pairs of every context window of d. It returns false if
// the consumer stopped or an error was yielded.
func (b *Builder[U]) emit(d []U, yield func(Pair[U], error) bool) bool {
	size := b.cfg.ContextSize
	for i := 0; i+size < len(d); i++ {
		window := d[i : i+size]
		response := d[i+size]
		for range b.cfg.NumNegative {
			neg, err := b.sample(window, response)
			if err != nil {
				yield(Pair[U]{}, err)
				return false
			}
			b.negatives++
			if !yield(Pair[U]{Context: slices.Clone(window), Response: neg, Label: LabelNegative}, nil) {
				return false
			}
		}
		b.positives++
		if !yield(Pair[U]{Context: slices.Clone(window), Response: response, Label: LabelPositive}, nil) {
			return false
		}
	}
	return true
}

// sample draws one negative for the window. Colliding candidates go back to
// the pool; at most Len redraws are attempted.
func (b *Builder[U]) sample(window []U, response U) (U, error) {
	collides := func(u U) bool {
		return u == response || slices.Contains(window, u)
	}

	retries := b.pool.Len()
	cand, err := b.pool.Draw()
	if err != nil {
		return cand, fmt.Errorf("%w (buffer too small for num_negative=%d, context_size=%d): %w",
			ErrPoolExhausted, b.cfg.NumNegative, b.cfg.ContextSize, err)
	}
	for collides(cand) && retries > 0 {
		b.pool.Push(cand)
		cand, err = b.pool.Draw()
		if err != nil {
			return cand, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
		}
		retries--
	}
	if collides(cand) {
		b.pool.Push(cand)
		var zero U
		return zero, fmt.Errorf("%w: all %d pooled utterances are in the context or response; consider a larger buffer_size",
			ErrSamplingDeadlock, b.pool.Len())
	}
	return cand, nil
}

// carryOver returns the leading slice of d that is inserted into the pool
// on the next call. Its length is (len(d)-contextSize)*numNegative capped at
// len(d); a negative length counts back from the end of d.
func carryOver[U any](d []U, contextSize, numNegative int) []U {
	n := min((len(d)-contextSize)*numNegative, len(d))
	if n < 0 {
		n = max(len(d)+n, 0)
	}
	return slices.Clone(d[:n])
}
