package pairs

import (
	"fmt"
	"log/slog"
)

// Config holds the construction-time parameters of a Builder.
// A Builder never changes its configuration after New.
type Config struct {
	// TotalDialogues is the number of dialogues in one pass over the corpus.
	// It must equal the record count reported by the record source.
	TotalDialogues int `json:"total_dialogues" yaml:"total_dialogues"`

	// ContextSize is the number of utterances in a context window.
	ContextSize int `json:"context_size" yaml:"context_size"`

	// BufferSize is the capacity of the negative candidate pool.
	// It must not exceed TotalDialogues.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`

	// NumNegative is the number of negative pairs per context window.
	// Zero means 1. It must be lower than BufferSize.
	NumNegative int `json:"num_negative" yaml:"num_negative"`

	// Seed seeds the pool's PRNG.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Logger receives state transition logs. Nil means slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// withDefaults returns a copy of c with zero-valued optional fields filled.
func (c Config) withDefaults() Config {
	if c.NumNegative == 0 {
		c.NumNegative = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate reports whether c can drive a Builder. Errors wrap
// ErrInvalidConfig.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.TotalDialogues < 1:
		return fmt.Errorf("%w: total_dialogues must be positive, got %d", ErrInvalidConfig, c.TotalDialogues)
	case c.ContextSize < 1:
		return fmt.Errorf("%w: context_size must be positive, got %d", ErrInvalidConfig, c.ContextSize)
	case c.BufferSize < 1:
		return fmt.Errorf("%w: buffer_size must be positive, got %d", ErrInvalidConfig, c.BufferSize)
	case c.NumNegative < 1:
		return fmt.Errorf("%w: num_negative must be positive, got %d", ErrInvalidConfig, c.NumNegative)
	case c.NumNegative >= c.BufferSize:
		return fmt.Errorf("%w: num_negative (%d) must be lower than buffer_size (%d)", ErrInvalidConfig, c.NumNegative, c.BufferSize)
	case c.BufferSize > c.TotalDialogues:
		return fmt.Errorf("%w: buffer_size (%d) must not exceed total_dialogues (%d)", ErrInvalidConfig, c.BufferSize, c.TotalDialogues)
	}
	return nil
}
