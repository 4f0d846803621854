package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orggraph/orggraph/internal/config"
	"github.com/orggraph/orggraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orggraph",
	Short: "OrgGraph - organization metadata to property graph pipeline",
	Long: `OrgGraph extracts teams, repositories, commits, issues and pull
requests from a GitHub organization and loads them into a Neo4j
property graph, linking people to the work they do.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		logger, err = logging.New(cmd.Name(), cfg.Logging.Dir, verbose)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .orggraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`OrgGraph {{.Version}}
Build time: ` + BuildTime + `
`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(artifactsCmd)
}
