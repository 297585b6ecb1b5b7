package pairs

import "errors"

// Sentinel errors. Every error returned by this package wraps one of them.
var (
	// ErrInvalidConfig is returned by New for unusable parameters, such as
	// NumNegative >= BufferSize or BufferSize > TotalDialogues.
	ErrInvalidConfig = errors.New("pairs: invalid configuration")

	// ErrEmptyPool is returned by Pool.Draw on an empty pool.
	ErrEmptyPool = errors.New("pairs: draw from empty pool")

	// ErrPoolExhausted means a negative was requested while the pool was
	// empty: the buffer is too small for the configured NumNegative and
	// ContextSize.
	ErrPoolExhausted = errors.New("pairs: negative pool exhausted")

	// ErrSamplingDeadlock means every pooled utterance collides with the
	// current context window or its response.
	ErrSamplingDeadlock = errors.New("pairs: sampling deadlock")
)
