package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/crpairs/pkg/cli"
	"github.com/haivivi/crpairs/pkg/corpus"
)

var (
	scanFlags  jobFlags
	scanForget bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index a corpus and report its size",
	Long: `Index a corpus and report its record count, size and scan time.

The offset index is stored in the index cache, so a later generate run over
the same unchanged file skips the scan. Use --forget to drop every cached
index instead.

Examples:
  crpairs scan --corpus train.txt
  crpairs scan --forget`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanFlags.addCorpus(scanCmd)
	scanCmd.Flags().BoolVar(&scanForget, "forget", false, "remove all cached corpus indexes")
}

type scanView struct {
	Path     string `json:"path" yaml:"path"`
	Records  int    `json:"records" yaml:"records"`
	Size     string `json:"size" yaml:"size"`
	Cached   bool   `json:"cached" yaml:"cached"`
	Duration string `json:"duration" yaml:"duration"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if scanForget {
		cache, err := openIndexCache(cli.DefaultJob.Merge(scanFlags.job), false)
		if err != nil {
			return err
		}
		defer cache.Close()
		if err := corpus.ForgetIndexes(ctx, cache); err != nil {
			return err
		}
		cli.PrintSuccess("Corpus indexes removed")
		return nil
	}

	job, err := scanFlags.resolve(cmd.Flags())
	if err != nil {
		return err
	}
	cache, err := openIndexCache(job, scanFlags.noCache)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	src, err := openCorpus(ctx, job, cache)
	if err != nil {
		return err
	}
	defer src.Close()

	info := src.Info()
	return outputResult(os.Stdout, scanView{
		Path:     info.Path,
		Records:  info.Records,
		Size:     cli.FormatBytes(info.Bytes),
		Cached:   info.Cached,
		Duration: cli.FormatDuration(info.Duration),
	})
}
