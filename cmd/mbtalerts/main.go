package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"mbtalerts/internal/calendar"
	"mbtalerts/internal/calendar/gcal"
	"mbtalerts/internal/calendar/icsstore"
	"mbtalerts/internal/config"
	"mbtalerts/internal/feed"
	appLog "mbtalerts/internal/log"
	"mbtalerts/internal/mapper"
	"mbtalerts/internal/reconcile"
	"mbtalerts/internal/secret"
	"mbtalerts/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	verbosity  int
	noCache    bool
	sync       bool
	dryRun     bool
	daemon     bool
	icsPath    string
	listen     string
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(flags); err != nil {
		appLog.Error("mbtalerts failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (flagConfig, error) {
	var f flagConfig

	fs := pflag.NewFlagSet("mbtalerts", pflag.ContinueOnError)
	fs.CountVarP(&f.verbosity, "verbose", "v", "Increase verbosity (-v for debug, -vv for trace)")
	fs.BoolVarP(&f.noCache, "no-cache", "n", false, "Query the feed instead of using today's cached copy")
	fs.BoolVarP(&f.sync, "sync-calendar", "s", false, "Sync alerts to the configured calendar")
	fs.BoolVar(&f.dryRun, "dry-run", false, "With --sync-calendar, log the plan without writing")
	fs.BoolVar(&f.daemon, "daemon", false, "Sync on the configured cron schedule and serve status")
	fs.StringVar(&f.configPath, "config", config.DefaultPath(), "Path to config file")
	fs.StringVar(&f.icsPath, "ics", "", "Sync into this .ics file instead of the configured calendar")
	fs.StringVar(&f.listen, "listen", "", "Status server listen address (overrides config if set)")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.dryRun && f.daemon {
		return f, errors.New("--dry-run cannot be combined with --daemon")
	}
	return f, nil
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", flags.configPath, err)
	}

	appLog.Init(os.Stderr, conf.Log.Format)
	appLog.SetLevel(appLog.LevelFromVerbosity(flags.verbosity))

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Status.Listen = flags.listen
	}
	if flags.icsPath != "" {
		conf.Calendar.Backend = config.BackendICS
		conf.Calendar.ICSPath = flags.icsPath
	}

	appLog.Debug("effective config",
		"config_path", flags.configPath,
		"timezone", conf.Timezone,
		"schedule", conf.Schedule,
		"feed_format", conf.Feed.Format,
		"backend", conf.Calendar.Backend,
		"skip_effects", conf.SkipEffects,
		"concurrency", conf.Concurrency,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	// The daemon must see feed changes within the day, so it only relies
	// on HTTP revalidation.
	src, err := newSource(conf, !flags.noCache && !flags.daemon)
	if err != nil {
		return err
	}
	rec := &reconcile.Reconciler{
		Mapper:      mapper.Mapper{Location: conf.Location()},
		Skip:        conf.SkipSet(),
		Concurrency: conf.Concurrency,
	}

	switch {
	case flags.daemon:
		svc, err := newCalendar(ctx, conf)
		if err != nil {
			return err
		}
		return runDaemon(ctx, conf, rec, src, svc)

	case flags.sync:
		svc, err := newCalendar(ctx, conf)
		if err != nil {
			return err
		}
		if flags.dryRun {
			return dryRun(ctx, rec, src, svc)
		}
		_, err = syncOnce(ctx, rec, src, svc, nil)
		return err

	default:
		alerts, err := src.Alerts(ctx)
		if err != nil {
			return err
		}
		printAlerts(os.Stdout, alerts)
		return nil
	}
}

func newSource(conf *config.Config, useCache bool) (*feed.HTTPSource, error) {
	fetcher := feed.NewFetcher(conf.Feed.CacheDir)
	fetcher.UseCache = useCache
	if conf.Feed.APIKeyEnv != "" {
		key, err := secret.Optional(conf.Feed.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		fetcher.APIKey = key
	}
	return &feed.HTTPSource{
		Fetcher:  fetcher,
		URL:      conf.Feed.URL,
		Format:   conf.Feed.Format,
		Location: conf.Location(),
	}, nil
}

func newCalendar(ctx context.Context, conf *config.Config) (calendar.Service, error) {
	switch conf.Calendar.Backend {
	case config.BackendICS:
		appLog.Info("using ics calendar", "path", conf.Calendar.ICSPath)
		return icsstore.New(conf.Calendar.ICSPath), nil
	default:
		c, err := gcal.NewFromEnv(ctx, conf.Calendar.CalendarID)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// syncOnce runs a single pass and records it in state when state is not nil.
func syncOnce(ctx context.Context, rec *reconcile.Reconciler, src reconcile.AlertSource, svc calendar.Service, state *web.State) (reconcile.Result, error) {
	start := time.Now()
	res, err := rec.Sync(ctx, src, svc)
	if state != nil {
		state.Record(start, res, err)
	}
	if err != nil {
		return res, err
	}
	appLog.Info("sync complete",
		"alerts", res.Alerts,
		"skipped", res.Skipped,
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func dryRun(ctx context.Context, rec *reconcile.Reconciler, src reconcile.AlertSource, svc calendar.Service) error {
	alerts, err := src.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("fetch alerts: %w", err)
	}
	events, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("list calendar events: %w", err)
	}

	plan := rec.Plan(alerts, events)
	if plan.Empty() {
		appLog.Info("dry run complete; nothing to do", "alerts", len(alerts), "skipped", len(plan.Skipped))
		return nil
	}
	for _, c := range plan.Creates {
		appLog.Info("would create", "alert_id", c.AlertID, "summary", c.Payload.Summary)
	}
	for _, u := range plan.Updates {
		appLog.Info("would update", "alert_id", u.AlertID, "event_id", u.EventID, "summary", u.Payload.Summary)
	}
	for _, d := range plan.Deletes {
		appLog.Info("would delete", "alert_id", d.AlertID, "event_id", d.EventID, "duplicate", d.Duplicate)
	}
	appLog.Info("dry run complete", "alerts", len(alerts), "plan", plan.Counts())
	return nil
}

// runDaemon syncs immediately and then on conf.Schedule until ctx is
// canceled. A failed pass is logged and retried on the next tick.
func runDaemon(ctx context.Context, conf *config.Config, rec *reconcile.Reconciler, src reconcile.AlertSource, svc calendar.Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &web.State{}
	pass := func() {
		if _, err := syncOnce(ctx, rec, src, svc, state); err != nil && ctx.Err() == nil {
			appLog.Error("sync failed; will retry on next tick", err, "retryable", feed.Retryable(err))
		}
	}

	c := cron.New(
		cron.WithLocation(conf.Location()),
		cron.WithLogger(appLog.CronLogger{}),
		cron.WithChain(
			cron.Recover(appLog.CronLogger{}),
			cron.SkipIfStillRunning(appLog.CronLogger{}),
		),
	)
	if _, err := c.AddFunc(conf.Schedule, pass); err != nil {
		return fmt.Errorf("schedule %q: %w", conf.Schedule, err)
	}

	serverErr := make(chan error, 1)
	if conf.Status.Listen != "" {
		srv := web.NewServer(conf, state, src, rec)
		go func() { serverErr <- srv.ListenAndServe(ctx) }()
	}

	appLog.Info("daemon started", "schedule", conf.Schedule, "timezone", conf.Timezone, "listen", conf.Status.Listen)
	pass()
	c.Start()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		err = fmt.Errorf("status server: %w", err)
	}

	// Wait for a running pass to notice cancellation.
	cancel()
	<-c.Stop().Done()
	appLog.Info("mbtalerts exiting")
	return err
}
