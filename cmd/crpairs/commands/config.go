package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/crpairs/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage crpairs configuration.

Configuration is stored in ~/.crpairs/crpairs/config.yaml.
Each context holds job defaults, e.g. one per corpus or per S3 account.`,
}

var contextFlags jobFlags

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add or replace a context of job defaults.

Any generate flag may be stored. Values given on the command line or in a
job file still take precedence.

Examples:
  crpairs config add-context ubuntu --corpus ~/data/ubuntu/train.txt --context-size 3
  crpairs config add-context minio --s3-endpoint http://localhost:9000 --s3-path-style \
    --s3-access-key minio --s3-secret-key minio123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		defaults := contextFlags.job
		defaults.S3 = contextFlags.s3Spec()
		if err := defaults.Validate(); err != nil {
			return err
		}
		if err := cfg.AddContext(name, &cli.Context{Defaults: defaults}); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", name)
		return nil
	},
}

var configGetContextsCmd = &cobra.Command{
	Use:   "get-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

type configView struct {
	Path           string                  `json:"path" yaml:"path"`
	CurrentContext string                  `json:"current_context,omitempty" yaml:"current_context,omitempty"`
	Contexts       map[string]*cli.Context `json:"contexts,omitempty" yaml:"contexts,omitempty"`
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration",
	Long:  "View full configuration. S3 secret keys are masked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		view := configView{
			Path:           cfg.Path(),
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, ctx := range cfg.Contexts {
			view.Contexts[name] = ctx.Masked()
		}
		return outputResult(os.Stdout, view)
	},
}

func init() {
	contextFlags.addCorpus(configAddContextCmd)
	contextFlags.addGeneration(configAddContextCmd)

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
