// Package kv is the key-value layer behind the corpus index cache.
//
// Keys are segment paths such as {"corpus", "<fingerprint>", "meta"}; stores
// join the segments with a separator byte (':' by default). Two backends are
// provided: Badger for an on-disk cache shared across runs and Memory for
// tests. Values are opaque bytes; GetValue and SetValue store msgpack-encoded
// values on top of any Store.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical key. Segments must not contain the store separator.
type Key []string

// String joins the segments with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key with its value.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with hierarchical keys.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error

	// List yields every entry strictly below prefix in lexicographic order
	// of the encoded key. An empty prefix lists the whole store.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores all entries in one write.
	BatchSet(ctx context.Context, entries []Entry) error

	// DeletePrefix removes key itself and every key below it.
	DeletePrefix(ctx context.Context, prefix Key) error

	Close() error
}

// DefaultSeparator joins key segments when Options.Separator is zero.
const DefaultSeparator byte = ':'

// Options configures key encoding. A nil *Options is valid.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	return []byte(strings.Join(k, string(o.sep())))
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// scanPrefix is the encoded prefix that matches keys strictly below k, so
// {"a","b"} does not match "a:bc". Nil for an empty key.
func (o *Options) scanPrefix(k Key) []byte {
	if len(k) == 0 {
		return nil
	}
	return append(o.encode(k), o.sep())
}

// GetValue reads key and msgpack-decodes it into a T.
func GetValue[T any](ctx context.Context, s Store, key Key) (T, error) {
	var v T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return v, nil
}

// SetValue msgpack-encodes v and stores it under key.
func SetValue[T any](ctx context.Context, s Store, key Key, v T) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
