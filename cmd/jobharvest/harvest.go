package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobharvest/internal/channel"
	"github.com/nao1215/jobharvest/internal/config"
	"github.com/nao1215/jobharvest/internal/harvest"
	"github.com/nao1215/jobharvest/internal/limiter"
	"github.com/nao1215/jobharvest/internal/location"
	"github.com/nao1215/jobharvest/internal/log"
	"github.com/nao1215/jobharvest/internal/model"
	"github.com/nao1215/jobharvest/internal/render"
	"github.com/nao1215/jobharvest/internal/report"
	"github.com/nao1215/jobharvest/internal/store"
	"github.com/nao1215/jobharvest/internal/transport"
)

// finishTimeout bounds the session bookkeeping done after a cancelled run.
const finishTimeout = 10 * time.Second

// NewHarvestCmd creates the harvest command.
func NewHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Collect job postings",
		Long: `Harvest runs one acquisition session against apec.fr.

The JSON API is queried page by page. When its first page fails or is
empty, the HTML search pages are used instead. When the API pass stops
early on its page limit or a failing page, one HTML pass tops up the
remaining records. Every posting is emitted at most once.

Examples:
  # Fifty Go jobs around Lyon
  jobharvest harvest --keyword golang --location Lyon --results 50

  # Reuse a search copied from the site
  jobharvest harvest --start-url 'https://www.apec.fr/candidat/recherche-emploi.html/emploi?motsCles=data&lieux=75'

  # Write records to a JSON-lines file and stop after five minutes
  jobharvest harvest -k devops -O jobs.jsonl --time-budget 5m

  # HTML pages only, rendered in a headless browser
  jobharvest harvest -k sre --api=false --render

  # Apply a profile from the configuration file
  jobharvest harvest --profile golang-lyon`,
		Args: cobra.NoArgs,
		RunE: runHarvestCmd,
	}

	// Search flags
	cmd.Flags().StringP("keyword", "k", "", "Free-text search keyword")
	cmd.Flags().StringP("location", "l", "", "Place name resolved through the site autocomplete")
	cmd.Flags().String("department", "", "Department code, used when no location matches")
	cmd.Flags().StringSlice("contract-type", nil, "Contract-type codes (repeatable)")
	cmd.Flags().StringSlice("remote-work", nil, "Remote-work codes (repeatable)")
	cmd.Flags().StringSlice("start-url", nil, "Search URL whose parameters override the filters (repeatable)")
	cmd.Flags().IntP("results", "n", config.DefaultResultsWanted, "Number of postings to collect")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum pages fetched per channel pass")
	cmd.Flags().Int("page-size", config.DefaultPageSize, "Offers requested per API page")
	cmd.Flags().Bool("details", true, "Fetch the detail of every posting")
	cmd.Flags().Bool("api", true, "Try the JSON API before the HTML pages")
	cmd.Flags().Bool("residual", true, "Top up with an HTML pass when the API pass stops early")

	// Transport flags
	cmd.Flags().IntP("concurrency", "j", config.DefaultMaxConcurrency, "Maximum simultaneous detail fetches")
	cmd.Flags().Duration("delay", 0, "Pause before every request, plus up to 25% jitter")
	cmd.Flags().Duration("time-budget", 0, "Stop the run after this duration (0 means no limit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().StringSlice("proxy", nil, "http, https or socks5 proxy URL, used round-robin (repeatable)")
	cmd.Flags().StringToString("header", nil, "Extra request header as key=value (repeatable)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes")
	cmd.Flags().String("site-url", config.DefaultSiteURL, "Site root URL")
	cmd.Flags().Bool("robots", false, "Honour robots.txt for HTML pages")
	cmd.Flags().Bool("render", false, "Load HTML pages in a headless browser")
	cmd.Flags().String("render-wait", config.DefaultRenderWaitSelector, "CSS selector awaited before a rendered page is read")

	// Output flags
	cmd.Flags().StringP("output", "O", "", "Append records to a JSON-lines file (\"-\" for stdout)")
	cmd.Flags().String("postgres-dsn", "", "Also write records to this PostgreSQL database")
	cmd.Flags().String("postgres-table", store.DefaultPostgresTable, "PostgreSQL table name")
	cmd.Flags().Bool("no-db", false, "Do not record the session in the local database")
	cmd.Flags().String("db-dir", "", "Local database directory (default: XDG data directory)")
	cmd.Flags().StringP("format", "f", config.DefaultReportFormat, "Summary format: text, json or markdown")
	cmd.Flags().StringP("report-file", "r", "", "Write the summary to this file instead of stdout")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .jobharvest in current or home directory)")
	cmd.Flags().String("profile", "", "Configuration file profile to apply")

	return cmd
}

func runHarvestCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	_, err = runHarvest(ctx, cfg, logger, cmd.OutOrStdout())
	return err
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting logger selected by the global flags.
func setupLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json")
	}
	if asJSON {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// buildConfig creates a Config from the command flags and the
// configuration file. Flags given explicitly win over the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.Keyword, err = flags.GetString("keyword"); err != nil {
		return nil, err
	}
	if cfg.Location, err = flags.GetString("location"); err != nil {
		return nil, err
	}
	if cfg.Department, err = flags.GetString("department"); err != nil {
		return nil, err
	}
	if cfg.ContractTypes, err = flags.GetStringSlice("contract-type"); err != nil {
		return nil, err
	}
	if cfg.RemoteWork, err = flags.GetStringSlice("remote-work"); err != nil {
		return nil, err
	}
	if cfg.StartURLs, err = flags.GetStringSlice("start-url"); err != nil {
		return nil, err
	}
	if cfg.ResultsWanted, err = flags.GetInt("results"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = flags.GetInt("page-size"); err != nil {
		return nil, err
	}
	if cfg.CollectDetails, err = flags.GetBool("details"); err != nil {
		return nil, err
	}
	if cfg.UseAPI, err = flags.GetBool("api"); err != nil {
		return nil, err
	}
	if cfg.ResidualPass, err = flags.GetBool("residual"); err != nil {
		return nil, err
	}

	if cfg.MaxConcurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.RequestDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.TimeBudget, err = flags.GetDuration("time-budget"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Proxies, err = flags.GetStringSlice("proxy"); err != nil {
		return nil, err
	}
	if cfg.Headers, err = flags.GetStringToString("header"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.SiteURL, err = flags.GetString("site-url"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.Render, err = flags.GetBool("render"); err != nil {
		return nil, err
	}
	if cfg.RenderWaitSelector, err = flags.GetString("render-wait"); err != nil {
		return nil, err
	}

	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.PostgresDSN, err = flags.GetString("postgres-dsn"); err != nil {
		return nil, err
	}
	if cfg.PostgresTable, err = flags.GetString("postgres-table"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if cfg.ReportFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Profile, err = flags.GetString("profile"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit config path or profile must resolve. Without either, a
	// missing file simply means no file defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		profile, err := file.Resolve(cfg.Profile)
		if err != nil {
			return nil, err
		}
		profile.Apply(cfg, flags.Changed)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	case cfg.Profile != "":
		return nil, fmt.Errorf("%w: %s (no configuration file found)", config.ErrProfileNotFound, cfg.Profile)
	}

	return cfg, nil
}

// runHarvest wires the channels and sinks described by cfg, runs one
// session and writes its summary. The summary is returned even when the
// session produced no record.
func runHarvest(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) (model.Summary, error) {
	client, err := transport.NewClient(
		transport.WithTimeout(cfg.Timeout),
		transport.WithProxies(cfg.Proxies),
		transport.WithRequestDelay(cfg.RequestDelay, config.DefaultJitterRatio),
		transport.WithHeaders(cfg.Headers),
		transport.WithMaxBodySize(cfg.MaxBodySize),
		transport.WithLogger(logger),
	)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to create http client: %w", err)
	}

	var startURL string
	if len(cfg.StartURLs) > 0 {
		startURL = cfg.StartURLs[0]
	}
	resolver := location.NewResolver(location.NewAPILookup(client, cfg.SiteURL), nil, logger)
	placeIDs := resolver.Resolve(ctx, location.Query{
		StartURL:   startURL,
		Text:       cfg.Location,
		Department: cfg.Department,
	})
	criteria := cfg.Criteria(placeIDs)

	var api channel.Strategy
	if cfg.UseAPI {
		api = channel.NewAPIStrategy(client,
			channel.WithAPISiteURL(cfg.SiteURL),
			channel.WithAPILogger(logger),
		)
	}

	var source channel.PageSource = channel.HTTPSource{Client: client}
	if cfg.Render {
		opts := []render.Option{
			render.WithWaitSelector(cfg.RenderWaitSelector),
			render.WithTimeout(cfg.Timeout),
			render.WithLogger(logger),
		}
		if p := renderProxy(cfg.Proxies, logger); p != "" {
			opts = append(opts, render.WithProxy(p))
		}
		renderer := render.New(ctx, opts...)
		defer renderer.Close()
		source = renderer
	}
	htmlOpts := []channel.HTMLOption{
		channel.WithHTMLSiteURL(cfg.SiteURL),
		channel.WithHTMLLogger(logger),
	}
	if cfg.RespectRobots {
		htmlOpts = append(htmlOpts, channel.WithRobots(transport.NewRobotsGate(client, config.AppName)))
	}
	html := channel.NewHTMLStrategy(source, htmlOpts...)

	runID := harvest.NewRunID()
	startedAt := time.Now()

	var db *store.RecordStore
	if cfg.SaveToDB {
		db, err = store.Open(cfg.DBDir, store.DefaultOptions())
		if err != nil {
			return model.Summary{}, fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	sink, err := openSinks(ctx, cfg, db, runID, startedAt, criteria)
	if err != nil {
		return model.Summary{}, err
	}

	orch := harvest.New(api, html,
		harvest.WithRunID(runID),
		harvest.WithLimiter(limiter.New(cfg.MaxConcurrency)),
		harvest.WithSink(sink),
		harvest.WithCallCounter(client),
		harvest.WithLogger(logger),
		harvest.WithResidualPass(cfg.ResidualPass),
	)
	summary, runErr := orch.Run(ctx, criteria)
	if cerr := sink.Close(); cerr != nil {
		logger.Error("failed to close outputs", "error", cerr)
	}
	if summary.RunID == "" {
		return summary, runErr
	}

	if db != nil {
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		if err := db.FinishSession(finishCtx, summary); err != nil {
			logger.Error("failed to record session", "run_id", runID, "error", err)
		}
		cancel()
	}

	reportOut := stdout
	if cfg.Output == "-" {
		reportOut = os.Stderr
	}
	if err := outputReport(cfg, &summary, reportOut); err != nil {
		return summary, fmt.Errorf("failed to write report: %w", err)
	}

	if errors.Is(runErr, harvest.ErrNoRecords) || errors.Is(runErr, harvest.ErrUpstreamFailed) {
		return summary, fmt.Errorf("harvest %s: %w", summary.RunID, runErr)
	}
	return summary, runErr
}

// renderProxy picks the proxy the headless browser is started with. The
// browser takes a single proxy for its lifetime and cannot authenticate to
// it, so credentials are dropped and only the first proxy is used.
func renderProxy(proxies []string, logger *slog.Logger) string {
	if len(proxies) == 0 {
		return ""
	}
	if len(proxies) > 1 {
		logger.Warn("rendered pages use only the first proxy, rotation applies to http requests only",
			"proxies", len(proxies))
	}
	u, err := url.Parse(proxies[0])
	if err != nil || u.Host == "" {
		logger.Warn("ignoring invalid proxy for the renderer")
		return ""
	}
	if u.User != nil {
		u.User = nil
		logger.Warn("headless browser does not support proxy credentials, connecting without them",
			"proxy", u.Host)
	}
	return u.String()
}

// openSinks assembles the record outputs. The returned sink is never nil.
func openSinks(ctx context.Context, cfg *config.Config, db *store.RecordStore, runID string, startedAt time.Time, criteria model.SearchCriteria) (*store.MultiSink, error) {
	var sinks []store.Sink
	fail := func(err error) (*store.MultiSink, error) {
		if cerr := store.NewMultiSink(sinks...).Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}

	if db != nil {
		session, err := db.BeginSession(ctx, runID, startedAt, criteria)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, session)
	}
	if cfg.Output != "" {
		jsonl, err := store.OpenJSONLines(cfg.Output)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, jsonl)
	}
	if cfg.PostgresDSN != "" {
		pg, err := store.OpenPostgres(ctx, cfg.PostgresDSN, runID, store.PostgresOptions{Table: cfg.PostgresTable})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, pg)
	}
	return store.NewMultiSink(sinks...), nil
}

// outputReport writes the summary in the configured format to the report
// file, or to w.
func outputReport(cfg *config.Config, summary *model.Summary, w io.Writer) error {
	output := w
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	writer, err := report.New(report.Format(cfg.ReportFormat), output, getVersion())
	if err != nil {
		return err
	}
	_, err = writer.Write(summary)
	return err
}
