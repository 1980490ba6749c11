package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand
type globalFlags struct {
	configPath        string
	driver            string
	dbPath            string
	dsn               string
	logLevel          string
	logFormat         string
	embeddingProvider string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "saasrank",
		Short: "Hybrid relevance ranking for SaaS product selection",
		Long: `saasrank ranks catalog SaaS products against a structured requirement
(category, problems, required features) by blending full-text and
embedding retrieval with fact matching.

Configuration is read from ~/.saasrank/config.toml, SAASRANK_* environment
variables and the flags below, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default ~/.saasrank/config.toml)")
	pf.StringVar(&flags.driver, "driver", "", "storage driver: sqlite or postgres")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database path")
	pf.StringVar(&flags.dsn, "dsn", "", "PostgreSQL connection string")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&flags.embeddingProvider, "embedding-provider", "", "embedding provider: jina, openai or local")

	root.AddCommand(
		newServeCmd(flags),
		newRankCmd(flags),
		newStatusCmd(flags),
		newImportCmd(flags),
		newVersionCmd(),
	)

	return root
}

// overrides maps explicitly set flags onto configuration keys
func (f *globalFlags) overrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	set := func(flag, key, value string) {
		if cmd.Flags().Changed(flag) {
			out[key] = value
		}
	}
	set("driver", "storage.driver", f.driver)
	set("db", "storage.path", f.dbPath)
	set("dsn", "storage.dsn", f.dsn)
	set("log-level", "log.level", f.logLevel)
	set("log-format", "log.format", f.logFormat)
	set("embedding-provider", "embedding.provider", f.embeddingProvider)
	return out
}
