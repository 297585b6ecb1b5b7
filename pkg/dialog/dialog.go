// Package dialog turns raw corpus records into dialogues: ordered sequences
// of utterances that the pair builder consumes.
//
// Two record formats are supported. Delimited records hold the utterances of
// one dialogue separated by a marker such as "__eou__" (Ubuntu Dialogue
// Corpus style). JSON records hold an array of strings, or any document from
// which a jq expression extracts the utterances.
package dialog

import (
	"errors"
	"fmt"
	"strings"
)

// Utterance is one turn of a dialogue, already tokenized and normalized.
type Utterance = string

// Dialogue is an ordered sequence of utterances.
type Dialogue []Utterance

var (
	// ErrUnknownFormat is returned by NewDecoder for unsupported formats.
	ErrUnknownFormat = errors.New("dialog: unknown format")

	// ErrBadRecord wraps every per-record decoding failure. Callers usually
	// skip such records.
	ErrBadRecord = errors.New("dialog: bad record")
)

// Decoder decodes one corpus record into a dialogue.
type Decoder interface {
	Decode(rec []byte) (Dialogue, error)
}

// Format names accepted by NewDecoder.
const (
	FormatDelimited = "delimited"
	FormatJSON      = "json"
)

// DefaultSeparator is the utterance separator of delimited records.
const DefaultSeparator = "__eou__"

// Options configures NewDecoder. Fields that do not apply to the chosen
// format are ignored.
type Options struct {
	// Sep separates utterances in delimited records.
	Sep string `json:"sep,omitempty" yaml:"sep,omitempty"`
	// Query is a jq expression applied to JSON records.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`
	// Repair retries malformed JSON records after repairing them.
	Repair bool `json:"repair,omitempty" yaml:"repair,omitempty"`
}

// NewDecoder returns the decoder for format. An empty format means
// FormatDelimited.
func NewDecoder(format string, opts Options) (Decoder, error) {
	switch strings.ToLower(format) {
	case "", FormatDelimited:
		return &DelimitedDecoder{Sep: opts.Sep}, nil
	case FormatJSON:
		return NewJSONDecoder(opts.Query, opts.Repair)
	}
	return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownFormat, format, FormatDelimited, FormatJSON)
}

// DelimitedDecoder splits a record on Sep. Utterances are trimmed and empty
// ones dropped.
type DelimitedDecoder struct {
	Sep string
}

func (d *DelimitedDecoder) Decode(rec []byte) (Dialogue, error) {
	sep := d.Sep
	if sep == "" {
		sep = DefaultSeparator
	}
	var out Dialogue
	for part := range strings.SplitSeq(string(rec), sep) {
		if u := strings.TrimSpace(part); u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}
