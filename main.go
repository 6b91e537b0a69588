package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ekaya-admingen",
	Short: "Generate admin-panel CRUD code from database tables",
	Long: `Introspects MySQL, PostgreSQL and SQL Server tables, infers form and list
fields, and renders frontend, backend and menu SQL from editable templates.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, seed templates and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending metadata store migrations",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed-templates",
	Short: "Insert the builtin templates into an empty template store",
	RunE:  runSeedTemplates,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadFile(configFile, Version)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
