package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/config"
	"github.com/windowhan/airbnb-demands-research/crawljobs"
	"github.com/windowhan/airbnb-demands-research/credential"
	"github.com/windowhan/airbnb-demands-research/httpclient"
	"github.com/windowhan/airbnb-demands-research/logger"
	"github.com/windowhan/airbnb-demands-research/proxypool"
	"github.com/windowhan/airbnb-demands-research/ratelimit"
	"github.com/windowhan/airbnb-demands-research/redisclient"
	"github.com/windowhan/airbnb-demands-research/scheduler"
	"github.com/windowhan/airbnb-demands-research/seed"
	"github.com/windowhan/airbnb-demands-research/store"
	"github.com/windowhan/airbnb-demands-research/tierconfig"
)

func main() {
	initFlag := flag.Bool("init", false, "validate config, load the station seed, and run credential extraction if needed")
	statusFlag := flag.Bool("status", false, "print tier, credential and proxy status, then exit")
	onceFlag := flag.String("once", "", "run a single job and exit: search, calendar, detail, or all")
	extractKeyFlag := flag.Bool("extract-key", false, "run credential extraction and exit")
	visibleFlag := flag.Bool("visible", false, "use a visible browser window for the -extract-key fallback path")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg)

	budget, err := tierconfig.BudgetFor(cfg.Tier)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tier")
	}
	log.Info().Str("env", cfg.Env).Str("tier", budget.Tier).Msg("airbnb-demands-research starting")

	if *extractKeyFlag {
		runExtractKey(cfg, log, *visibleFlag)
		return
	}

	if err := cfg.Validate(!*statusFlag); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	credStore := credential.NewStore(cfg.CredentialFile)

	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without Redis")
	} else if rc != nil {
		log.Info().Msg("cache layer ready")
	}

	if *statusFlag {
		runStatus(cfg, log, budget, credStore)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, stations, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	if pg, ok := db.(*store.PostgresStore); ok {
		defer pg.Close()
	}

	if *initFlag {
		runInit(log, stations, credStore)
		return
	}

	creds, ok := credStore.Load()
	if !ok {
		if mirrored, mirrorOK := rc.LoadMirroredCredentials(ctx); mirrorOK {
			creds = mirrored
			log.Info().Msg("loaded credentials from the Redis mirror")
			if err := credStore.Save(creds); err != nil {
				log.Warn().Err(err).Msg("failed to persist the mirrored credentials locally")
			}
		} else {
			log.Fatal().Msg("no valid credentials on file; run with -extract-key first")
		}
	}
	if err := rc.MirrorCredentials(ctx, creds); err != nil {
		log.Warn().Err(err).Msg("failed to mirror credentials to redis")
	}

	client, err := newHTTPClient(cfg, budget, credStore, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct http client")
	}

	searchJob := crawljobs.NewSearchJob(client, db, rc, log)
	calendarJob := crawljobs.NewCalendarJob(client, db, log)
	detailJob := crawljobs.NewDetailJob(client, db, log)

	jobs := jobSet{db: db, budget: budget, log: log, search: searchJob, calendar: calendarJob, detail: detailJob}

	if *onceFlag != "" {
		runOnce(ctx, jobs, *onceFlag)
		return
	}

	runScheduler(ctx, cfg, log, jobs)
}

// runExtractKey runs the credential extractor standalone (spec §4.3)
// and persists whatever it recovers, independent of the rest of the
// process.
func runExtractKey(cfg *config.Config, log zerolog.Logger, visible bool) {
	extractor := credential.NewExtractor(nil, log)
	extractor.Visible = visible

	creds := extractor.Run()
	if creds.Empty() {
		log.Fatal().Msg("credential extraction failed to recover an api key")
	}

	credStore := credential.NewStore(cfg.CredentialFile)
	if err := credStore.Save(creds); err != nil {
		log.Fatal().Err(err).Msg("failed to persist extracted credentials")
	}
	log.Info().Int("operations", len(creds.Hashes)).Msg("credential extraction succeeded")
}

func runStatus(cfg *config.Config, log zerolog.Logger, budget tierconfig.TierBudget, credStore *credential.Store) {
	fmt.Printf("tier: %s\n", budget.Tier)
	fmt.Printf("search_interval_minutes: %d\n", budget.SearchIntervalMinutes)
	fmt.Printf("calendar_enabled: %v\n", budget.CalendarEnabled)
	fmt.Printf("detail_enabled: %v\n", budget.DetailEnabled)
	fmt.Printf("proxy_required: %v\n", budget.ProxyRequired)

	if creds, ok := credStore.Load(); ok {
		fmt.Printf("credentials: valid, %d operations cached\n", len(creds.Hashes))
	} else {
		fmt.Println("credentials: absent or expired, run -extract-key")
	}

	urls, err := loadProxyURLs(cfg)
	if err != nil {
		fmt.Printf("proxies: invalid configuration: %v\n", err)
		return
	}
	fmt.Printf("proxies: %d configured\n", len(urls))
	if budget.ProxyRequired && len(urls) == 0 {
		fmt.Println("warning: this tier requires a proxy pool but none is configured")
	}
}

// runInit loads the station seed and bootstraps credentials when
// none are already on file. It does not seed a database directly:
// PostgresStore expects the stations table to already be populated by
// a migration step, and MemoryStore takes its seed at construction.
func runInit(log zerolog.Logger, stations []store.Station, credStore *credential.Store) {
	log.Info().Int("stations", len(stations)).Msg("station seed loaded")

	if _, ok := credStore.Load(); ok {
		log.Info().Msg("init complete, existing credentials are still valid")
		return
	}

	log.Info().Msg("no valid credentials on file, running extraction")
	extractor := credential.NewExtractor(nil, log)
	creds := extractor.Run()
	if creds.Empty() {
		log.Fatal().Msg("credential extraction failed during init")
	}
	if err := credStore.Save(creds); err != nil {
		log.Fatal().Err(err).Msg("failed to persist extracted credentials")
	}
	log.Info().Msg("init complete")
}

// jobSet bundles the three crawl jobs with the dependencies their
// scheduler/once-mode closures need.
type jobSet struct {
	db       store.Store
	budget   tierconfig.TierBudget
	log      zerolog.Logger
	search   *crawljobs.SearchJob
	calendar *crawljobs.CalendarJob
	detail   *crawljobs.DetailJob
}

func (j jobSet) runSearch(ctx context.Context) {
	stations, err := j.db.LoadStations(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to load stations for search job")
		return
	}
	eligible := make([]store.Station, 0, len(stations))
	for _, s := range stations {
		if j.budget.AllowsPriority(s.Priority) {
			eligible = append(eligible, s)
		}
	}
	result := j.search.Run(ctx, eligible)
	j.logResult(ctx, result)
}

func (j jobSet) runCalendar(ctx context.Context) {
	listings, err := j.db.ListListings(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to load listings for calendar job")
		return
	}
	result := j.calendar.Run(ctx, listings)
	j.logResult(ctx, result)
}

func (j jobSet) runDetail(ctx context.Context) {
	listings, err := j.db.ListListings(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to load listings for detail job")
		return
	}
	result := j.detail.Run(ctx, listings)
	j.logResult(ctx, result)
}

func (j jobSet) logResult(ctx context.Context, result store.CrawlLog) {
	if err := j.db.InsertCrawlLog(ctx, result); err != nil {
		j.log.Error().Err(err).Msg("failed to persist crawl log")
	}
	j.log.Info().
		Str("job", result.JobType).
		Str("status", string(result.Status)).
		Int("requests", result.TotalRequests).
		Int("blocked", result.BlockedRequests).
		Msg("crawl job finished")
}

func runOnce(ctx context.Context, jobs jobSet, which string) {
	switch which {
	case "search":
		jobs.runSearch(ctx)
	case "calendar":
		jobs.runCalendar(ctx)
	case "detail":
		jobs.runDetail(ctx)
	case "all":
		jobs.runSearch(ctx)
		jobs.runCalendar(ctx)
		jobs.runDetail(ctx)
	default:
		jobs.log.Fatal().Str("once", which).Msg("unknown -once value; want search, calendar, detail, or all")
	}
}

func runScheduler(ctx context.Context, cfg *config.Config, log zerolog.Logger, jobs jobSet) {
	var searchFn, calendarFn, detailFn scheduler.JobFunc
	if cfg.SearchEnabled {
		searchFn = jobs.runSearch
	}
	if cfg.CalendarEnabled {
		calendarFn = jobs.runCalendar
	}
	if cfg.DetailEnabled {
		detailFn = jobs.runDetail
	}

	s := scheduler.New(jobs.budget, log, searchFn, calendarFn, detailFn)
	s.Start()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// Stop cancels outstanding work and returns immediately; it does
	// not wait out cfg.GracefulTimeout, matching the no-overlap,
	// no-wait shutdown model in spec §4.9.
	s.Stop()
	log.Info().Msg("crawler stopped")
}

// newHTTPClient wires L3 (ratelimit), L4 (proxypool) and L1 (the
// credential store) into the L5 façade.
func newHTTPClient(cfg *config.Config, budget tierconfig.TierBudget, credStore *credential.Store, log zerolog.Logger) (*httpclient.Client, error) {
	limiter := ratelimit.New(budget, log)

	urls, err := loadProxyURLs(cfg)
	if err != nil {
		return nil, fmt.Errorf("proxy configuration: %w", err)
	}
	if budget.ProxyRequired && len(urls) == 0 {
		return nil, fmt.Errorf("tier %s requires a proxy pool but none is configured", budget.Tier)
	}
	pool := proxypool.New(urls, budget.RequestsPerIPBeforeRotate, log)

	return httpclient.New(limiter, pool, credStore, log), nil
}

// loadProxyURLs reads proxy URLs from PROXY_LIST_FILE (one per line)
// if set, otherwise from the comma-separated PROXY_LIST value.
func loadProxyURLs(cfg *config.Config) ([]string, error) {
	var raw []string

	if cfg.ProxyListFile != "" {
		f, err := os.Open(cfg.ProxyListFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cfg.ProxyListFile, err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				raw = append(raw, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	} else if cfg.ProxyListEnv != "" {
		for _, entry := range strings.Split(cfg.ProxyListEnv, ",") {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				raw = append(raw, trimmed)
			}
		}
	}

	return proxypool.ParseURLs(raw)
}

// openStore connects to Postgres when DATABASE_URL is reachable,
// falling back to an in-memory store seeded from the station file for
// local development — the same degrade-to-something-usable posture
// the teacher applies to its analytics sink.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, []store.Station, error) {
	stations, err := seed.Load(cfg.StationsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading station seed: %w", err)
	}

	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		if !cfg.IsDevelopment() {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		log.Warn().Err(err).Msg("postgres connection failed — falling back to an in-memory store")
		return store.NewMemoryStore(stations), stations, nil
	}

	log.Info().Msg("postgres store connected")
	return pg, stations, nil
}
