package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/breachscan/internal/config"
	"github.com/nao1215/breachscan/internal/database"
	"github.com/nao1215/breachscan/internal/hibp"
	seclog "github.com/nao1215/breachscan/internal/log"
	"github.com/nao1215/breachscan/internal/model"
	"github.com/nao1215/breachscan/internal/notify"
	"github.com/nao1215/breachscan/internal/pipeline"
	"github.com/nao1215/breachscan/internal/source"
)

var (
	// errNoInput is returned when neither an address nor --list is given.
	errNoInput = errors.New("no input: give an email address or --list FILE")

	// errConflictingInput is returned when both an address and --list are given.
	errConflictingInput = errors.New("give either an email address or --list FILE, not both")
)

// manualSource is the run source of a single address typed on the command line.
const manualSource = "manual"

// checkOptions are the per-invocation settings that are not part of Config.
type checkOptions struct {
	email       string
	listFile    string
	formats     []model.Format
	baseName    string
	emailTo     string
	diagnostics bool
}

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [email]",
		Short: "Check email addresses against known breaches",
		Long: `Check looks up one address, or every address of a list file, in the
Have I Been Pwned breach database.

List files are CSV (address in the first column, no header) or XLSX
(first sheet). A bare file name is also looked up in the input directory.
Lookups of a list are paced to stay under the API rate limit.

Examples:
  # Check a single address
  breachscan check alice@example.com

  # Check a list and write an Excel report
  breachscan check --list emails.csv --format xlsx

  # Check a list, write CSV and Markdown, and email the report
  breachscan check -l emails.csv -f csv,markdown --email-to security@example.com

  # Send the email through Amazon SES
  breachscan check -l emails.csv -f xlsx --email-to security@example.com --transport ses`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheckCmd,
	}

	// Input flags
	cmd.Flags().StringP("list", "l", "",
		"CSV or XLSX file with one email address per row")

	// Output flags
	cmd.Flags().StringSliceP("format", "f", nil,
		"Report formats to write: csv, xlsx, markdown, json (comma separated)")
	cmd.Flags().StringP("name", "n", "",
		"Base name of report files (default breach-report-YYYYMMDD-HHMMSS)")
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory for report files")
	cmd.Flags().String("input-dir", config.DefaultInputDir,
		"Directory searched for list files given by name")

	// Notification flags
	cmd.Flags().StringP("email-to", "e", "",
		"Email the report to this address")
	cmd.Flags().String("transport", config.TransportSMTP,
		"Mail transport: smtp or ses")

	// API flags
	cmd.Flags().Duration("pacing", config.DefaultPacingDelay,
		"Pause between lookups of a list")
	cmd.Flags().Int("max-attempts", config.DefaultMaxAttempts,
		"Requests per address when rate limited")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each API request")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for API traffic (host:port)")
	cmd.Flags().String("api-url", config.DefaultAPIBaseURL,
		"Breach API base URL")
	_ = cmd.Flags().MarkHidden("api-url")
	cmd.Flags().Bool("no-diagnostics", false,
		"Do not dump raw API responses to stderr")

	// Misc
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .breachscan in current or home directory)")
	cmd.Flags().String("env-file", config.DefaultEnvFile,
		"dotenv file with secrets")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	opts, err := buildCheckOptions(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	logger := seclog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCheck(ctx, cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// loadConfig layers defaults, the config file, the .env file and the
// environment. An explicit configPath must exist; the default locations
// are optional.
func loadConfig(configPath, envFile string, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = configPath

	switch found := config.FindConfigFile(configPath); {
	case found != "":
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		cfg.ApplyFile(file)
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// buildConfig loads the configuration and overlays the flags the user
// set explicitly.
func buildConfig(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(configPath, envFile, lookupEnv)
	if err != nil {
		return nil, err
	}

	strFlags := []struct {
		name string
		dst  *string
	}{
		{"output-dir", &cfg.OutputDir},
		{"input-dir", &cfg.InputDir},
		{"transport", &cfg.Transport},
		{"proxy", &cfg.ProxyAddress},
		{"api-url", &cfg.APIBaseURL},
	}
	for _, f := range strFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return nil, err
		}
	}
	if flags.Changed("pacing") {
		if cfg.PacingDelay, err = flags.GetDuration("pacing"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-attempts") {
		if cfg.MaxAttempts, err = flags.GetInt("max-attempts"); err != nil {
			return nil, err
		}
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// buildCheckOptions reads the input and output flags.
func buildCheckOptions(cmd *cobra.Command, args []string) (checkOptions, error) {
	var opts checkOptions
	var err error
	flags := cmd.Flags()

	if opts.listFile, err = flags.GetString("list"); err != nil {
		return opts, err
	}
	if len(args) > 0 {
		opts.email = args[0]
	}
	switch {
	case opts.email != "" && opts.listFile != "":
		return opts, errConflictingInput
	case opts.email == "" && opts.listFile == "":
		return opts, errNoInput
	}

	names, err := flags.GetStringSlice("format")
	if err != nil {
		return opts, err
	}
	for _, name := range names {
		format, err := model.ParseFormat(name)
		if err != nil {
			return opts, err
		}
		opts.formats = appendFormat(opts.formats, format)
	}

	if opts.baseName, err = flags.GetString("name"); err != nil {
		return opts, err
	}
	if opts.emailTo, err = flags.GetString("email-to"); err != nil {
		return opts, err
	}
	noDiagnostics, err := flags.GetBool("no-diagnostics")
	if err != nil {
		return opts, err
	}
	opts.diagnostics = !noDiagnostics

	// An email needs an attachment.
	if opts.emailTo != "" && len(opts.formats) == 0 {
		opts.formats = []model.Format{model.FormatXLSX}
	}
	return opts, nil
}

// appendFormat appends f unless it is already present.
func appendFormat(formats []model.Format, f model.Format) []model.Format {
	for _, existing := range formats {
		if existing == f {
			return formats
		}
	}
	return append(formats, f)
}

// runCheck reads the addresses, runs the check pipeline and prints where
// the results went.
func runCheck(ctx context.Context, cfg *config.Config, opts checkOptions, stdout, stderr io.Writer, logger *slog.Logger) error {
	emails, src, pacing, err := readAddresses(cfg, opts)
	if err != nil {
		return err
	}
	run := model.NewRun(src, emails)

	logger.Info("starting check",
		"source", src,
		"addresses", len(emails),
		"formats", opts.formats,
		"email_to", opts.emailTo,
	)

	var diagnostics io.Writer
	if opts.diagnostics {
		diagnostics = stderr
	}
	client, err := newBreachClient(cfg, diagnostics, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewLookupStep(client,
			pipeline.WithLookupPacing(pacing),
			pipeline.WithLookupLogger(logger),
			pipeline.WithLookupProgress(progressPrinter(stderr)),
		),
		pipeline.NewAggregateStep(),
		pipeline.NewPresentStep(stdout),
	)
	if len(opts.formats) > 0 {
		p.AddStep(pipeline.NewExportStep(opts.formats, cfg.OutputDir, opts.baseName, logger))
	}
	if opts.emailTo != "" {
		sender, err := newSender(ctx, cfg, logger)
		if err != nil {
			return err
		}
		p.AddStep(pipeline.NewNotifyStep(sender, opts.emailTo, logger))
	}
	if cfg.SaveHistory {
		db, err := database.Open(cfg.HistoryDir, database.DefaultOptions())
		if err != nil {
			// History is an audit trail; the check itself still runs.
			logger.Warn("run history disabled", "dir", cfg.HistoryDir, "error", err)
		} else {
			defer db.Close()
			p.AddStep(pipeline.NewHistoryStep(db, logger))
		}
	}

	if err := p.Execute(ctx, run); err != nil {
		return err
	}

	printOutcome(stdout, stderr, run)
	return nil
}

// readAddresses returns the addresses to check, the run source and the
// pacing delay. A single typed address is never paced.
func readAddresses(cfg *config.Config, opts checkOptions) ([]string, string, time.Duration, error) {
	if opts.listFile == "" {
		emails, err := source.FromManualEntry(opts.email)
		if err != nil {
			return nil, "", 0, err
		}
		return emails, manualSource, 0, nil
	}

	path := source.Resolve(opts.listFile, cfg.InputDir)
	emails, err := source.FromFile(path)
	if err != nil {
		return nil, "", 0, err
	}
	return emails, path, cfg.PacingDelay, nil
}

// newBreachClient builds the API client from cfg.
func newBreachClient(cfg *config.Config, diagnostics io.Writer, logger *slog.Logger) (*hibp.Client, error) {
	opts := []hibp.Option{
		hibp.WithBaseURL(cfg.APIBaseURL),
		hibp.WithUserAgent(cfg.UserAgent),
		hibp.WithMaxAttempts(cfg.MaxAttempts),
		hibp.WithLogger(logger),
	}
	if cfg.ProxyAddress != "" {
		hc, err := hibp.NewProxyHTTPClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", cfg.ProxyAddress, err)
		}
		opts = append(opts, hibp.WithHTTPClient(hc))
	}
	opts = append(opts, hibp.WithTimeout(cfg.Timeout))
	if diagnostics != nil {
		opts = append(opts, hibp.WithDiagnostics(diagnostics))
	}
	return hibp.NewClient(cfg.APIKey, opts...), nil
}

// newSender builds the mail sender selected by cfg.Transport.
func newSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.Transport {
	case config.TransportSES:
		sender, err := notify.NewSESSender(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey, cfg.SenderEmail, logger)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return notify.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUsername,
			cfg.SMTPPassword,
			cfg.SMTPAccount,
			cfg.SenderEmail,
			notify.WithSMTPLogger(logger),
		), nil
	}
}

// progressPrinter reports each finished lookup on w.
func progressPrinter(w io.Writer) func(model.Lookup, int, int) {
	return func(l model.Lookup, index, total int) {
		status := l.Result.Kind.String()
		if l.Result.IsFailed() {
			status = "failed: " + l.Result.FailureText()
		}
		fmt.Fprintf(w, "[%d/%d] %s: %s\n", index+1, total, l.Email, status)
	}
}

// printOutcome lists the written artifacts and the email result.
func printOutcome(stdout, stderr io.Writer, run *model.Run) {
	for _, a := range run.Artifacts {
		fmt.Fprintf(stdout, "Report written: %s\n", a.Path)
	}
	if run.Recipient == "" {
		return
	}
	if run.Notified {
		fmt.Fprintf(stdout, "Report emailed to %s\n", run.Recipient)
		return
	}
	fmt.Fprintf(stderr, "warning: report was not emailed to %s: %s\n", run.Recipient, run.NotifyError)
}
