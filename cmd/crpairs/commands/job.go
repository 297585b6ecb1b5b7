package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/haivivi/crpairs/pkg/cli"
	"github.com/haivivi/crpairs/pkg/corpus"
	"github.com/haivivi/crpairs/pkg/kv"
	"github.com/haivivi/crpairs/pkg/progress"
	"github.com/haivivi/crpairs/pkg/storage"
)

// jobFlags binds the job fields shared by generate and scan.
type jobFlags struct {
	job     cli.JobSpec
	s3      storage.S3Config
	noCache bool
}

func (f *jobFlags) addCorpus(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.job.Corpus, "corpus", "", "corpus file, directory or s3:// URL")
	fl.IntVar(&f.job.SkipHeader, "skip-header", 0, "leading lines of the corpus file to ignore")
	fl.Uint64Var(&f.job.Seed, "seed", 0, "PRNG seed for shuffling and sampling")
	fl.StringVar(&f.job.IndexDir, "index-dir", "", "corpus index cache directory (default ~/.crpairs/crpairs/index)")
	fl.BoolVar(&f.noCache, "no-index-cache", false, "always scan the corpus")
	addS3Flags(cmd, &f.s3)
}

func (f *jobFlags) addGeneration(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.job.Format, "format", "", "record format: delimited or json (default delimited)")
	fl.StringVar(&f.job.Sep, "sep", "", "utterance separator of delimited records (default __eou__)")
	fl.StringVar(&f.job.Query, "query", "", "jq expression extracting utterances from JSON records")
	fl.BoolVar(&f.job.Repair, "repair", false, "repair malformed JSON records")
	fl.BoolVar(&f.job.Strict, "strict", false, "fail on undecodable records")
	fl.IntVar(&f.job.ContextSize, "context-size", 0, "utterances per context window (default 2)")
	fl.IntVar(&f.job.BufferSize, "buffer-size", 0, "negative candidate pool capacity (default min(1000, records))")
	fl.IntVar(&f.job.NumNegative, "num-negative", 0, "negative pairs per context window (default 1)")
	fl.IntVar(&f.job.Passes, "passes", 0, "passes over the corpus (default 1)")
	fl.BoolVar(&f.job.Reshuffle, "reshuffle", false, "reshuffle the corpus between passes")
	fl.StringVar(&f.job.Encoding, "encoding", "", "pair encoding: jsonl or msgpack (default jsonl)")
}

// s3Spec returns the S3 flags, or nil when none was given.
func (f *jobFlags) s3Spec() *storage.S3Config {
	if f.s3 == (storage.S3Config{}) {
		return nil
	}
	s3 := f.s3
	return &s3
}

func addS3Flags(cmd *cobra.Command, s3 *storage.S3Config) {
	fl := cmd.Flags()
	fl.StringVar(&s3.Region, "s3-region", "", "S3 region")
	fl.StringVar(&s3.Endpoint, "s3-endpoint", "", "S3 endpoint for compatible stores")
	fl.StringVar(&s3.AccessKeyID, "s3-access-key", "", "S3 access key ID")
	fl.StringVar(&s3.SecretAccessKey, "s3-secret-key", "", "S3 secret access key")
	fl.BoolVar(&s3.PathStyle, "s3-path-style", false, "use path-style S3 addressing")
}

// resolve merges built-in defaults, the context, the job file and the flags,
// in increasing precedence.
func (f *jobFlags) resolve(fl *pflag.FlagSet) (cli.JobSpec, error) {
	job := cli.DefaultJob
	ctx, err := getContext()
	if err != nil {
		return job, err
	}
	if ctx != nil {
		slog.Debug("using context", "name", ctx.Name)
		job = job.Merge(ctx.Defaults)
	}
	if inputFile != "" {
		fileJob, err := cli.LoadJob(inputFile)
		if err != nil {
			return job, err
		}
		job = job.Merge(fileJob)
	}
	over := f.job
	over.Output = outputFile
	over.S3 = f.s3Spec()
	job = f.applyChanged(fl, job.Merge(over))
	if err := job.Validate(); err != nil {
		return job, err
	}
	if job.Corpus == "" {
		return job, fmt.Errorf("no corpus: use --corpus or set it in the job file or context")
	}
	return job, nil
}

// applyChanged assigns the flags whose zero value is meaningful when they
// were set explicitly, so --strict=false or --seed 0 override a context.
func (f *jobFlags) applyChanged(fl *pflag.FlagSet, job cli.JobSpec) cli.JobSpec {
	if fl.Changed("repair") {
		job.Repair = f.job.Repair
	}
	if fl.Changed("strict") {
		job.Strict = f.job.Strict
	}
	if fl.Changed("reshuffle") {
		job.Reshuffle = f.job.Reshuffle
	}
	if fl.Changed("seed") {
		job.Seed = f.job.Seed
	}
	return job
}

func s3Config(job cli.JobSpec) storage.S3Config {
	if job.S3 == nil {
		return storage.S3Config{}
	}
	return *job.S3
}

func paths() (*cli.Paths, error) {
	return cli.NewPaths(appName)
}

// localCorpus returns a local path for the job's corpus, downloading it
// first when it lives in S3.
func localCorpus(ctx context.Context, job cli.JobSpec) (string, error) {
	if !strings.HasPrefix(job.Corpus, "s3://") {
		return job.Corpus, nil
	}
	loc, err := storage.ParseLocation(job.Corpus)
	if err != nil {
		return "", err
	}
	store, name, err := storage.Open(job.Corpus, s3Config(job))
	if err != nil {
		return "", err
	}
	p, err := paths()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(p.CorpusDir(), loc.Bucket, filepath.FromSlash(loc.Dir))
	slog.Info("fetching corpus", "from", loc.String(), "to", dir)
	return corpus.Fetch(ctx, store, name, dir)
}

// openIndexCache opens the badger database for corpus indexes. It returns a
// nil store when caching is disabled.
func openIndexCache(job cli.JobSpec, disabled bool) (kv.Store, error) {
	if disabled {
		return nil, nil
	}
	dir := job.IndexDir
	if dir == "" {
		p, err := paths()
		if err != nil {
			return nil, err
		}
		dir = p.IndexDir()
	}
	if _, err := cli.Ensure(dir); err != nil {
		return nil, fmt.Errorf("index cache: %w", err)
	}
	return kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: slog.Default()})
}

// openCorpus opens the job's corpus, reporting scan progress on stderr.
func openCorpus(ctx context.Context, job cli.JobSpec, cache kv.Store) (corpus.Source, error) {
	path, err := localCorpus(ctx, job)
	if err != nil {
		return nil, err
	}
	tracker := newTracker(0)
	src, err := corpus.Open(ctx, path, corpus.FileOptions{
		SkipHeader: job.SkipHeader,
		Seed:       job.Seed,
		Cache:      cache,
		Progress:   tracker,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	if !src.Info().Cached {
		tracker.Done()
	}
	return src, nil
}

// newTracker returns a progress tracker on stderr, or nil when stderr is
// not a terminal and -v is off.
func newTracker(total int) *progress.Tracker {
	inline := isTerminal(os.Stderr)
	if !inline && !verbose {
		return nil
	}
	return progress.New(os.Stderr, progress.Options{
		Rate:   progress.DefaultRate,
		Total:  total,
		Inline: inline,
	})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
