package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/crpairs/pkg/cli"
)

const appName = "crpairs"

var (
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "crpairs",
	Short: "Context/response pair generator for dialogue models",
	Long: `crpairs turns a corpus of dialogues into labeled context/response pairs
for training response-selection models. Every context window yields the true
next utterance (label 1) and negatives sampled from a bounded pool of
utterances seen elsewhere in the corpus (label 0).

Configuration is stored in ~/.crpairs/crpairs/ and supports multiple contexts
of job defaults, similar to kubectl's context management.

Examples:
  # Pairs for an Ubuntu-style corpus, one dialogue per line
  crpairs generate --corpus train.txt -o pairs.jsonl

  # JSON records, utterances selected with jq, three passes
  crpairs generate --corpus dialogs.jsonl --format json --query '.turns[].text' --passes 3 --reshuffle

  # Job file with a corpus in S3
  crpairs generate -f job.yaml -o s3://datasets/pairs/train.jsonl
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.crpairs/crpairs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file or s3:// URL (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "job file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		// generate and scan still work without a config file
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the selected context, or nil when none is selected.
func getContext() (*cli.Context, error) {
	if globalConfig == nil {
		if contextName != "" {
			return nil, fmt.Errorf("configuration not initialized")
		}
		return nil, nil
	}
	return globalConfig.ResolveContext(contextName)
}

func outputResult(w io.Writer, result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format, Writer: w})
}
