package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next when the buffer has been closed for
// writing and every element has been consumed.
var ErrIteratorDone = errors.New("iterator done")

// BlockBuffer is a thread-safe fixed-size FIFO of elements. Add blocks while
// the buffer is full and Next blocks while it is empty, which gives the
// producer/consumer pair natural back-pressure.
//
// The buffer uses monotonically increasing head and tail counters over a
// circular slice.
type BlockBuffer[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// BlockN creates a new BlockBuffer holding at most size elements.
func BlockN[T any](size int) *BlockBuffer[T] {
	if size <= 0 {
		size = 1
	}
	bb := &BlockBuffer[T]{buf: make([]T, size)}
	bb.cond = sync.NewCond(&bb.mu)
	return bb
}

// Add appends t, blocking while the buffer is full.
// It fails once the write side is closed or the buffer was closed with an
// error.
func (bb *BlockBuffer[T]) Add(t T) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	size := int64(len(bb.buf))
	for {
		if bb.closeErr != nil {
			return fmt.Errorf("buffer: write to closed buffer: %w", bb.closeErr)
		}
		if bb.closeWrite {
			return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
		}
		if bb.tail-bb.head < size {
			break
		}
		bb.cond.Wait()
	}
	bb.buf[bb.tail%size] = t
	bb.tail++
	bb.cond.Broadcast()
	return nil
}

// Next removes and returns the oldest element, blocking while the buffer is
// empty. It returns ErrIteratorDone after CloseWrite once the buffer drains.
func (bb *BlockBuffer[T]) Next() (t T, err error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	for {
		if bb.closeErr != nil {
			return t, fmt.Errorf("buffer: read from closed buffer: %w", bb.closeErr)
		}
		if bb.head != bb.tail {
			break
		}
		if bb.closeWrite {
			return t, ErrIteratorDone
		}
		bb.cond.Wait()
	}
	i := bb.head % int64(len(bb.buf))
	t = bb.buf[i]
	var zero T
	bb.buf[i] = zero
	bb.head++
	bb.cond.Broadcast()
	return t, nil
}

// CloseWrite closes the write side. Buffered elements remain readable.
func (bb *BlockBuffer[T]) CloseWrite() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.closeWrite {
		return nil
	}
	bb.closeWrite = true
	bb.cond.Broadcast()
	return nil
}

// CloseWithError closes both sides immediately. Pending and future calls
// return err; a nil err means io.ErrClosedPipe. Only the first error is kept.
func (bb *BlockBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.closeErr != nil {
		return nil
	}
	bb.closeErr = err
	bb.closeWrite = true
	bb.cond.Broadcast()
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (bb *BlockBuffer[T]) Close() error {
	return bb.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (bb *BlockBuffer[T]) Error() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.closeErr
}

// Len returns the number of buffered elements.
func (bb *BlockBuffer[T]) Len() int {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return int(bb.tail - bb.head)
}
