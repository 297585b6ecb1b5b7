package dialog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/kaptinlin/jsonrepair"
)

// JSONDecoder decodes JSON records. Without a query a record must be an
// array of strings. With a query every output of the jq expression must be
// a string or an array of strings; the outputs are concatenated in order.
type JSONDecoder struct {
	query  *gojq.Query
	expr   string
	repair bool
}

// NewJSONDecoder parses expr (which may be empty) and returns a decoder.
func NewJSONDecoder(expr string, repair bool) (*JSONDecoder, error) {
	d := &JSONDecoder{expr: expr, repair: repair}
	if strings.TrimSpace(expr) == "" {
		return d, nil
	}
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("dialog: invalid jq expression %q: %w", expr, err)
	}
	d.query = q
	return d, nil
}

func (d *JSONDecoder) Decode(rec []byte) (Dialogue, error) {
	var doc any
	if err := d.unmarshal(rec, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if d.query == nil {
		return appendUtterances(nil, doc)
	}

	var out Dialogue
	it := d.query.Run(doc)
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("%w: jq %q: %v", ErrBadRecord, d.expr, err)
		}
		var err error
		if out, err = appendUtterances(out, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// unmarshal decodes data, repairing it first on a syntax error when repair
// is enabled.
func (d *JSONDecoder) unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil || !d.repair {
		return err
	}
	if _, ok := err.(*json.SyntaxError); !ok {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return fmt.Errorf("%w (repair: %v)", err, rerr)
	}
	return json.Unmarshal([]byte(fixed), v)
}

func appendUtterances(out Dialogue, v any) (Dialogue, error) {
	switch v := v.(type) {
	case string:
		if u := strings.TrimSpace(v); u != "" {
			out = append(out, u)
		}
		return out, nil
	case []any:
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, want string", ErrBadRecord, i, e)
			}
			if u := strings.TrimSpace(s); u != "" {
				out = append(out, u)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: got %T, want string or array of strings", ErrBadRecord, v)
}
