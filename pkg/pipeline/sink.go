package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/crpairs/pkg/pairs"
)

// ErrUnknownEncoding is returned by NewSink for unsupported encodings.
var ErrUnknownEncoding = errors.New("pipeline: unknown encoding")

// Pair is the pair type produced from text dialogues.
type Pair = pairs.Pair[string]

// Sink receives generated pairs in order.
type Sink interface {
	Write(p Pair) error
	// Close flushes buffered output. It does not close the underlying
	// writer.
	Close() error
}

// Encodings accepted by NewSink.
const (
	EncodingJSONL   = "jsonl"
	EncodingMsgpack = "msgpack"
)

// NewSink returns the sink for encoding. An empty encoding means JSONL.
func NewSink(encoding string, w io.Writer) (Sink, error) {
	switch encoding {
	case "", EncodingJSONL:
		return NewJSONLSink(w), nil
	case EncodingMsgpack:
		return NewMsgpackSink(w), nil
	}
	return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownEncoding, encoding, EncodingJSONL, EncodingMsgpack)
}

// JSONLSink writes one JSON object per line:
//
//	{"context":["hi","hello"],"response":"how are you","label":1}
type JSONLSink struct {
	bw  *bufio.Writer
	enc *json.Encoder
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLSink{bw: bw, enc: enc}
}

func (s *JSONLSink) Write(p Pair) error { return s.enc.Encode(p) }

func (s *JSONLSink) Close() error { return s.bw.Flush() }

// MsgpackSink writes a stream of msgpack maps with the same keys as the
// JSONL encoding.
type MsgpackSink struct {
	bw  *bufio.Writer
	enc *msgpack.Encoder
}

func NewMsgpackSink(w io.Writer) *MsgpackSink {
	bw := bufio.NewWriter(w)
	return &MsgpackSink{bw: bw, enc: msgpack.NewEncoder(bw)}
}

func (s *MsgpackSink) Write(p Pair) error { return s.enc.Encode(p) }

func (s *MsgpackSink) Close() error { return s.bw.Flush() }
