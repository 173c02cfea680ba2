package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nao1215/breachscan/internal/config"
	"github.com/nao1215/breachscan/internal/database"
)

// defaultHistoryLimit is the number of runs shown by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous checks",
		Long: `History lists the checks recorded in the history database, newest first.

With --email it lists every recorded lookup of one address instead.

Examples:
  # Show the last 20 checks
  breachscan history

  # Show every check as JSON
  breachscan history --limit 0 --json

  # Show how an address fared over time
  breachscan history --email alice@example.com`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON")
	cmd.Flags().String("email", "",
		"Show the lookups of one address")
	cmd.Flags().String("history-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path")

	return cmd
}

// historyOptions holds the history command flags.
type historyOptions struct {
	dir   string
	limit int
	json  bool
	email string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var opts historyOptions
	var err error

	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.email, err = flags.GetString("email"); err != nil {
		return err
	}
	if opts.dir, err = flags.GetString("history-dir"); err != nil {
		return err
	}
	if opts.dir == "" {
		configPath, err := flags.GetString("config")
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configPath, config.DefaultEnvFile, noEnv)
		if err != nil {
			return err
		}
		opts.dir = cfg.HistoryDir
	}

	return showHistory(cmd.Context(), cmd.OutOrStdout(), opts)
}

// showHistory prints recorded runs, or the lookups of one address.
func showHistory(ctx context.Context, w io.Writer, opts historyOptions) error {
	if _, err := os.Stat(filepath.Join(opts.dir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "No checks recorded yet.")
		return nil
	}

	db, err := database.Open(opts.dir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	if opts.email != "" {
		records, err := db.AddressHistory(ctx, opts.email)
		if err != nil {
			return err
		}
		if opts.json {
			return writeJSON(w, records)
		}
		return writeAddressTable(w, records)
	}

	runs, err := db.ListRuns(ctx, opts.limit)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(w, runs)
	}
	return writeRunTable(w, runs)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRunTable prints one line per recorded run.
func writeRunTable(w io.Writer, runs []database.RunRecord) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No checks recorded yet.")
		return nil
	}

	data := make([][]string, len(runs))
	for i, r := range runs {
		emailed := "-"
		if r.Recipient != "" {
			emailed = r.Recipient
			if !r.Notified {
				emailed += " (failed)"
			}
		}
		data[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Source,
			strconv.Itoa(r.Summary.Addresses),
			strconv.Itoa(r.Summary.Compromised),
			strconv.Itoa(r.Summary.Clean),
			strconv.Itoa(r.Summary.Failed),
			emailed,
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Started", "Source", "Addresses", "Compromised", "Clean", "Failed", "Emailed"})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeAddressTable prints one line per recorded lookup of an address.
func writeAddressTable(w io.Writer, records []database.LookupRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No lookups recorded for this address.")
		return nil
	}

	data := make([][]string, len(records))
	for i, r := range records {
		detail := strings.Join(r.BreachNames, ", ")
		if r.Failure != "" {
			detail = r.Failure
		}
		if detail == "" {
			detail = "-"
		}
		data[i] = []string{
			strconv.FormatInt(r.RunID, 10),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind,
			strconv.Itoa(r.BreachCount),
			detail,
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Run", "Started", "Result", "Breaches", "Detail"})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
