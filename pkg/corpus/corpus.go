// Package corpus provides random-order access to the records of a dialogue
// corpus without loading it into memory.
//
// A FileSource indexes a newline-delimited file once, recording where every
// non-blank line starts, and then reads records on demand with ReadAt. A
// DirSource treats every regular file of a directory as one record. Both
// visit records in a seeded random order that is fixed until the next call
// to Shuffle, so a pass over the corpus is reproducible.
package corpus

import (
	"context"
	"errors"
	"iter"
	"math/rand/v2"
)

// ErrClosed is returned when reading from a closed source.
var ErrClosed = errors.New("corpus: source closed")

// Record is one raw corpus record.
type Record struct {
	// Index is the record's position in storage order.
	Index int
	Data  []byte
}

// Source is a corpus that can be iterated repeatedly in a seeded order.
type Source interface {
	// Len returns the number of records.
	Len() int

	// Records yields every record once in the current order. Iteration
	// stops with ctx's error when ctx is done.
	Records(ctx context.Context) iter.Seq2[Record, error]

	// Shuffle replaces the current order with a permutation derived from
	// seed.
	Shuffle(seed uint64)

	// Info describes the corpus and how it was indexed.
	Info() Info

	Close() error
}

// order is the visiting order shared by the source implementations.
type order []int

func identity(n int) order {
	o := make(order, n)
	for i := range o {
		o[i] = i
	}
	return o
}

// shuffle replaces o with the permutation of seed, whatever o held before.
func (o order) shuffle(seed uint64) {
	for i := range o {
		o[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
	rng.Shuffle(len(o), func(i, j int) { o[i], o[j] = o[j], o[i] })
}

// visit yields read(i) for every index in o.
func (o order) visit(ctx context.Context, read func(int) ([]byte, error)) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, i := range o {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			data, err := read(i)
			if err != nil {
				yield(Record{Index: i}, err)
				return
			}
			if !yield(Record{Index: i, Data: data}, nil) {
				return
			}
		}
	}
}
