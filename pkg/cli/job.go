package cli

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/haivivi/crpairs/pkg/storage"
)

// JobSpec describes one generation run. It is read from job files, stored
// as context defaults and filled from flags.
type JobSpec struct {
	// Corpus is a file, a directory or an s3:// URL.
	Corpus string `json:"corpus,omitempty" yaml:"corpus,omitempty" jsonschema:"corpus file, directory or s3:// URL"`
	// Output is a file or an s3:// URL; empty means stdout.
	Output string `json:"output,omitempty" yaml:"output,omitempty" jsonschema:"pairs destination file or s3:// URL, stdout when empty"`

	Format     string `json:"format,omitempty" yaml:"format,omitempty" jsonschema:"record format"`
	Sep        string `json:"sep,omitempty" yaml:"sep,omitempty" jsonschema:"utterance separator of delimited records"`
	Query      string `json:"query,omitempty" yaml:"query,omitempty" jsonschema:"jq expression extracting utterances from JSON records"`
	Repair     bool   `json:"repair,omitempty" yaml:"repair,omitempty" jsonschema:"repair malformed JSON records"`
	SkipHeader int    `json:"skip_header,omitempty" yaml:"skip_header,omitempty" jsonschema:"leading lines of the corpus file to ignore"`
	Strict     bool   `json:"strict,omitempty" yaml:"strict,omitempty" jsonschema:"fail on undecodable records instead of skipping them"`

	ContextSize int    `json:"context_size,omitempty" yaml:"context_size,omitempty" jsonschema:"utterances per context window"`
	BufferSize  int    `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty" jsonschema:"negative candidate pool capacity"`
	NumNegative int    `json:"num_negative,omitempty" yaml:"num_negative,omitempty" jsonschema:"negative pairs per context window"`
	Seed        uint64 `json:"seed,omitempty" yaml:"seed,omitempty" jsonschema:"PRNG seed for shuffling and sampling"`
	Passes      int    `json:"passes,omitempty" yaml:"passes,omitempty" jsonschema:"passes over the corpus"`
	Reshuffle   bool   `json:"reshuffle,omitempty" yaml:"reshuffle,omitempty" jsonschema:"reshuffle the corpus between passes"`

	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty" jsonschema:"pair output encoding"`
	IndexDir string `json:"index_dir,omitempty" yaml:"index_dir,omitempty" jsonschema:"directory of the corpus index cache"`

	S3 *storage.S3Config `json:"s3,omitempty" yaml:"s3,omitempty" jsonschema:"S3 connection for s3:// locations"`
}

// DefaultJob holds the built-in defaults. BufferSize has none: it is
// derived from the corpus size.
var DefaultJob = JobSpec{
	Format:      "delimited",
	ContextSize: 2,
	NumNegative: 1,
	Passes:      1,
	Encoding:    "jsonl",
}

// Merge returns j with every non-zero field of over applied on top. A zero
// field in over means unset, so Merge can turn Repair, Strict and Reshuffle
// on but never off, and cannot reset Seed to 0. Callers that need that, like
// explicitly set CLI flags, assign the fields after merging.
func (j JobSpec) Merge(over JobSpec) JobSpec {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	set(&j.Corpus, over.Corpus)
	set(&j.Output, over.Output)
	set(&j.Format, over.Format)
	set(&j.Sep, over.Sep)
	set(&j.Query, over.Query)
	set(&j.Encoding, over.Encoding)
	set(&j.IndexDir, over.IndexDir)
	setInt(&j.SkipHeader, over.SkipHeader)
	setInt(&j.ContextSize, over.ContextSize)
	setInt(&j.BufferSize, over.BufferSize)
	setInt(&j.NumNegative, over.NumNegative)
	setInt(&j.Passes, over.Passes)
	if over.Seed != 0 {
		j.Seed = over.Seed
	}
	j.Repair = j.Repair || over.Repair
	j.Strict = j.Strict || over.Strict
	j.Reshuffle = j.Reshuffle || over.Reshuffle
	if over.S3 != nil {
		s3 := storage.S3Config{}
		if j.S3 != nil {
			s3 = *j.S3
		}
		set(&s3.Bucket, over.S3.Bucket)
		set(&s3.Prefix, over.S3.Prefix)
		set(&s3.Region, over.S3.Region)
		set(&s3.Endpoint, over.S3.Endpoint)
		set(&s3.AccessKeyID, over.S3.AccessKeyID)
		set(&s3.SecretAccessKey, over.S3.SecretAccessKey)
		s3.PathStyle = s3.PathStyle || over.S3.PathStyle
		j.S3 = &s3
	}
	return j
}

var jobSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	s, err := JobSchema()
	if err != nil {
		return nil, err
	}
	return s.Resolve(nil)
})

// JobSchema returns the JSON Schema of job files.
func JobSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[JobSpec](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("job schema: %w", err)
	}
	s.Title = "crpairs job"
	positive := func(name string) {
		if p, ok := s.Properties[name]; ok {
			p.Minimum = ptr(1.0)
		}
	}
	positive("context_size")
	positive("buffer_size")
	positive("num_negative")
	positive("passes")
	if p, ok := s.Properties["skip_header"]; ok {
		p.Minimum = ptr(0.0)
	}
	if p, ok := s.Properties["format"]; ok {
		p.Enum = []any{"delimited", "json"}
	}
	if p, ok := s.Properties["encoding"]; ok {
		p.Enum = []any{"jsonl", "msgpack"}
	}
	return s, nil
}

// LoadJob reads a YAML or JSON job file, validates it against JobSchema
// and decodes it.
func LoadJob(path string) (JobSpec, error) {
	var doc any
	if err := LoadRequest(path, &doc); err != nil {
		return JobSpec{}, err
	}
	return decodeJob(doc)
}

// ParseJob is LoadJob for in-memory data; filename selects the syntax.
func ParseJob(data []byte, filename string) (JobSpec, error) {
	var doc any
	if err := ParseRequest(data, filename, &doc); err != nil {
		return JobSpec{}, err
	}
	return decodeJob(doc)
}

// Validate checks j against JobSchema. Zero fields are unset and always
// pass.
func (j JobSpec) Validate() error {
	_, err := decodeJob(j)
	return err
}

func decodeJob(doc any) (JobSpec, error) {
	// Round-trip through JSON so YAML documents validate with JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return JobSpec{}, fmt.Errorf("invalid job: %w", err)
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return JobSpec{}, fmt.Errorf("invalid job: %w", err)
	}
	schema, err := jobSchema()
	if err != nil {
		return JobSpec{}, err
	}
	if err := schema.Validate(inst); err != nil {
		return JobSpec{}, fmt.Errorf("invalid job: %w", err)
	}
	var job JobSpec
	if err := json.Unmarshal(raw, &job); err != nil {
		return JobSpec{}, fmt.Errorf("invalid job: %w", err)
	}
	return job, nil
}

func ptr[T any](v T) *T { return &v }
