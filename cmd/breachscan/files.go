package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/breachscan/internal/config"
	"github.com/nao1215/breachscan/internal/source"
)

// NewFilesCmd creates the files command.
func NewFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List address files in the input directory",
		Long: `Files lists the CSV and XLSX files in the input directory.
Any listed name can be passed to "breachscan check --list".

Examples:
  # List files in the configured input directory
  breachscan files

  # List files in another directory
  breachscan files --input-dir ./lists`,
		Args: cobra.NoArgs,
		RunE: runFilesCmd,
	}

	cmd.Flags().String("input-dir", "",
		"Directory to list (default: configured input directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path")

	return cmd
}

// runFilesCmd executes the files command.
func runFilesCmd(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("input-dir")
	if err != nil {
		return err
	}
	if dir == "" {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configPath, config.DefaultEnvFile, noEnv)
		if err != nil {
			return err
		}
		dir = cfg.InputDir
	}
	return listFiles(cmd.OutOrStdout(), dir)
}

// listFiles prints the list files found in dir.
func listFiles(w io.Writer, dir string) error {
	names, err := source.ListFiles(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No CSV or XLSX files found in %s\n", dir)
		return nil
	}

	fmt.Fprintf(w, "Files in %s:\n", dir)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

// noEnv is an environment lookup that finds nothing. Commands that need
// no secrets use it so the process environment cannot make them fail.
func noEnv(string) (string, bool) {
	return "", false
}
