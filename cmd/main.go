package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"guild-contributions/adapters"
	"guild-contributions/extractor"
	"guild-contributions/internal/types"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	defaults := types.DefaultConfig()

	// Parse command line flags
	var (
		targetURL    = flag.String("url", defaults.TargetURL, "Guild page URL (empty to use the page already open in the tab)")
		domain       = flag.String("domain", defaults.Domain, "Domain used to name the export file")
		remoteURL    = flag.String("remote", os.Getenv("CHROME_REMOTE_URL"), "DevTools URL of a running Chrome to attach to")
		profileDir   = flag.String("profile", "", "Chrome profile directory (keeps the login between runs)")
		headless     = flag.Bool("headless", defaults.UseHeadlessBrowser, "Run a launched Chrome headless")
		nativeInput  = flag.Bool("native-input", false, "Click through DevTools input events instead of synthesized DOM events")
		outputFlag   = flag.String("output", "", "Output file path (default: <domain>_contributions.csv)")
		jsonOutput   = flag.Bool("json", false, "Write JSON instead of CSV")
		showTable    = flag.Bool("table", false, "Print the results table when the run completes")
		entityDelay  = flag.Duration("delay", defaults.EntityDelay, "Pause between members")
		menuTimeout  = flag.Duration("menu-timeout", defaults.MenuTimeout, "How long to wait for a member menu")
		panelTimeout = flag.Duration("panel-timeout", defaults.PanelTimeout, "How long to wait for the contributions dialog")
		timeout      = flag.Duration("timeout", defaults.Timeout, "Bound on a single browser round trip")
		action       = flag.String("action", defaults.Action, "Menu item that opens the dialog")
		fieldsFlag   = flag.String("fields", strings.Join(defaults.Fields, ","), "Comma-separated contribution labels to collect")
		limit        = flag.Int("limit", 0, "Stop after this many members (0 = all)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	fields := types.ParseFieldSet(*fieldsFlag)
	if len(fields) == 0 {
		log.Fatal("--fields must name at least one label")
	}

	// Setup logging
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	// Set log level from LOG_LEVEL env if present
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Create configuration
	config := defaults
	config.TargetURL = *targetURL
	config.Domain = *domain
	config.RemoteURL = *remoteURL
	config.ProfileDir = *profileDir
	config.UseHeadlessBrowser = *headless
	config.NativeInput = *nativeInput
	config.EntityDelay = *entityDelay
	config.MenuTimeout = *menuTimeout
	config.PanelTimeout = *panelTimeout
	config.Timeout = *timeout
	config.Action = *action
	config.Fields = fields
	config.Limit = *limit

	output := *outputFlag
	if output == "" {
		output = extractor.ExportFilename(config.Domain)
		if *jsonOutput {
			output = strings.TrimSuffix(output, ".csv") + ".json"
		}
	}

	// Ctrl-C stops the run between members; collected records are still written
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	adapter := adapters.NewManarionAdapter(config, logger)
	opts := runOptions{output: output, asJSON: *jsonOutput, showTable: *showTable, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, adapter, config, logger, opts); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

// guildPage is a page the CLI can open, scrape and release
type guildPage interface {
	extractor.Surface
	Open(ctx context.Context) error
	Close()
}

type runOptions struct {
	output    string
	asJSON    bool
	showTable bool
	stdout    io.Writer
	stderr    io.Writer
}

// run scrapes page and writes the export. The page is closed on every path,
// so a launched Chrome and its profile lock are released before exit.
func run(ctx context.Context, page guildPage, config *types.Config, logger *logrus.Logger, opts runOptions) error {
	defer page.Close()

	if err := page.Open(ctx); err != nil {
		return fmt.Errorf("failed to open guild page: %w", err)
	}

	ex := extractor.NewExtractor(page, config, logger, extractor.WithProgress(func(e types.LogEntry) {
		fmt.Fprintln(opts.stderr, e.String())
	}))

	summary, err := ex.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if opts.showTable {
		ex.RenderTable(opts.stdout)
	}

	if len(ex.Records()) == 0 {
		logger.Warn("No contributions collected, nothing to export")
	} else if err := writeExport(ex, opts.output, opts.asJSON); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	} else {
		logger.Infof("Results written to: %s", opts.output)
	}

	// Print summary
	logger.Infof("Members discovered: %d", summary.Discovered)
	logger.Infof("Succeeded: %d", summary.Succeeded)
	logger.Infof("Failed: %d", summary.Failed)
	logger.Infof("Elapsed: %v", summary.Finished.Sub(summary.Started).Round(time.Millisecond))
	if summary.Aborted {
		logger.Warn("Run was interrupted before every member was processed")
	}
	return nil
}

func writeExport(ex *extractor.Extractor, path string, asJSON bool) error {
	var buf bytes.Buffer
	var err error
	if asJSON {
		err = ex.ExportJSON(&buf)
	} else {
		err = ex.ExportCSV(&buf)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
