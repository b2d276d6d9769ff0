package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/samvad-hq/metalpal/internal/calendar"
	"github.com/samvad-hq/metalpal/internal/config"
	"github.com/samvad-hq/metalpal/internal/display"
	"github.com/samvad-hq/metalpal/internal/domain"
	"github.com/samvad-hq/metalpal/internal/enrich"
	"github.com/samvad-hq/metalpal/internal/filter"
	"github.com/samvad-hq/metalpal/internal/logger"
	"github.com/samvad-hq/metalpal/internal/merge"
	"github.com/samvad-hq/metalpal/internal/state"
	"github.com/samvad-hq/metalpal/pkg/httpclient"
	"github.com/samvad-hq/metalpal/pkg/providers"
	"github.com/samvad-hq/metalpal/pkg/publishers"
)

// CalendarSource fetches the raw release calendar page.
type CalendarSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Components are the collaborators a Runner talks to. Any nil field is
// built from the configuration when the run starts.
type Components struct {
	Store      state.Store
	Source     CalendarSource
	Popularity providers.PopularityProvider
	Archive    providers.ArchiveProvider
	// Publishers replaces the Slack and publishers-file sinks when non-nil.
	Publishers []publishers.Publisher
	Prompt     Prompter
	Output     io.Writer
	Now        func() time.Time
	NewRunID   func() string
}

// Runner executes one pass of the release pipeline: refresh the calendar,
// enrich and filter today's releases, persist them and announce the
// survivors.
type Runner struct {
	cfg       *config.Config
	log       logger.Logger
	comps     Components
	extractor *calendar.Extractor
	printer   *display.Printer
	fanout    *publishers.Fanout
}

// NewRunner wires a Runner. The state store is opened here; providers and
// publishers need the stored settings and are built by Run.
func NewRunner(cfg *config.Config, log logger.Logger, comps Components) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	log = logger.Ensure(log)

	extractor, err := calendar.NewExtractor(calendar.DefaultPatterns(), log)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	if comps.Store == nil {
		store, err := state.NewStore(cfg.StateType, cfg.StatePath, state.Options{Retention: cfg.StateRetention})
		if err != nil {
			return nil, fmt.Errorf("init state store: %w", err)
		}
		comps.Store = store
		log.InfoObj("state store initialized", "state_config", map[string]any{
			"type":           cfg.StateType,
			"path":           cfg.StatePath,
			"retention_days": cfg.StateRetentionDays,
		})
	}
	if comps.Source == nil {
		client := httpclient.NewRestyClient(cfg.HTTPTimeout, httpclient.WithUserAgent(cfg.UserAgent))
		comps.Source = calendar.NewSource(client, cfg.CalendarURL, nil)
	}
	if comps.Now == nil {
		comps.Now = time.Now
	}
	if comps.NewRunID == nil {
		comps.NewRunID = uuid.NewString
	}
	if comps.Prompt == nil {
		comps.Prompt = TerminalPrompt
	}

	return &Runner{
		cfg:       cfg,
		log:       log,
		comps:     comps,
		extractor: extractor,
		printer:   display.NewPrinter(comps.Output),
	}, nil
}

// Run executes the pipeline once. Every returned error is fatal for the
// process.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.comps.Store == nil {
		return errors.New("runner is not initialized")
	}
	start := r.comps.Now()
	runID := r.comps.NewRunID()
	r.log.InfoObj("run started", "run_meta", map[string]any{
		"run_id":     runID,
		"started_at": start.UTC(),
	})

	st, err := r.loadState(ctx)
	if err != nil {
		return err
	}
	if err := r.prepare(ctx, st.Settings); err != nil {
		return err
	}

	if r.cfg.ForceFetch || st.Stale(start, r.cfg.FetchInterval) {
		if err := r.refreshCalendar(ctx, st, start); err != nil {
			return err
		}
	} else {
		r.log.InfoObj("calendar is fresh; skipping fetch", "calendar_meta", map[string]any{
			"last_update": st.LastUpdate.UTC(),
		})
	}
	if err := r.comps.Store.Save(ctx, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	today := civil.DateOf(start)
	todays := merge.Today(st.Releases, today)
	if len(todays) == 0 {
		r.log.InfoObj(display.Summary(0, 0), "run_meta", map[string]any{"run_id": runID, "date": today.String()})
		return r.printer.Print(0, nil)
	}

	todays, err = r.process(ctx, todays, today, st.Settings)
	if err != nil {
		return err
	}

	updated := merge.Reconcile(st.Releases, todays)
	if err := r.comps.Store.Save(ctx, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	accepted := display.SortByFollowers(merge.Accepted(todays))
	r.log.InfoObj(display.Summary(len(todays), len(accepted)), "run_meta", map[string]any{
		"run_id":   runID,
		"date":     today.String(),
		"total":    len(todays),
		"accepted": len(accepted),
		"updated":  updated,
	})
	if err := r.printer.Print(len(todays), accepted); err != nil {
		return fmt.Errorf("print releases: %w", err)
	}

	if len(accepted) > 0 {
		if err := r.notify(ctx, publishers.NewEvent(runID, today, len(todays), accepted)); err != nil {
			return err
		}
	}

	r.log.InfoObj("run completed", "run_meta", map[string]any{
		"run_id":     runID,
		"elapsed_ms": r.comps.Now().Sub(start).Milliseconds(),
	})
	return nil
}

// loadState reads the stored history and merges the settings given on this
// invocation over the stored ones. The interactive prompt runs when asked
// for or when no settings exist anywhere.
func (r *Runner) loadState(ctx context.Context) (*state.State, error) {
	st, err := r.comps.Store.Load(ctx)
	switch {
	case errors.Is(err, state.ErrNotFound):
		r.log.InfoObj("no stored state; starting fresh", "state_path", r.cfg.StatePath)
		st = &state.State{}
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	}

	settings := st.Settings.Merge(r.cfg.Settings)
	if r.cfg.Interactive || settings.IsZero() {
		prompted, err := r.comps.Prompt(settings)
		if err != nil {
			return nil, &config.ConfigError{Field: "interactive", Err: err}
		}
		settings = settings.Merge(prompted.Sanitize())
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	st.Settings = settings
	return st, nil
}

// prepare builds the collaborators that depend on stored settings.
func (r *Runner) prepare(ctx context.Context, settings config.Settings) error {
	if r.comps.Popularity == nil {
		base := &http.Client{Timeout: r.cfg.HTTPTimeout}
		hc := providers.SpotifyHTTPClient(ctx, settings.SpotifyClientID, settings.SpotifyClientSecret, r.cfg.SpotifyTokenURL, base)
		sp, err := providers.NewSpotify(providers.Provider{
			ID:      providers.TypeSpotify,
			Name:    "Spotify",
			BaseURL: r.cfg.SpotifyAPIURL,
		}, httpclient.NewRestyClientFrom(hc, r.cfg.HTTPTimeout, httpclient.WithUserAgent(r.cfg.UserAgent)))
		if err != nil {
			return &config.ConfigError{Field: "spotify_api_url", Err: err}
		}
		r.comps.Popularity = sp
	}
	if r.comps.Archive == nil {
		ma, err := providers.NewMetallum(providers.Provider{
			ID:      providers.TypeMetallum,
			Name:    "Encyclopaedia Metallum",
			BaseURL: r.cfg.MetallumURL,
			Config:  map[string]any{"user_agent": r.cfg.UserAgent},
		}, httpclient.NewRestyClient(r.cfg.HTTPTimeout))
		if err != nil {
			return &config.ConfigError{Field: "metallum_url", Err: err}
		}
		r.comps.Archive = ma
	}

	pubs := r.comps.Publishers
	if pubs == nil {
		built, err := r.buildPublishers(ctx, settings)
		if err != nil {
			return err
		}
		pubs = built
	}
	r.fanout = publishers.NewFanout(pubs)
	return nil
}

// buildPublishers combines the Slack sink from settings with the entries
// of the optional publishers file.
func (r *Runner) buildPublishers(ctx context.Context, settings config.Settings) ([]publishers.Publisher, error) {
	var cfgs []publishers.PublisherConfig
	if !r.cfg.DisableSlack && settings.SlackBotToken != "" && len(settings.SlackChannels) > 0 {
		cfgs = append(cfgs, publishers.SlackFromSettings(settings.SlackBotToken, settings.SlackChannels))
	}
	if r.cfg.PublishersFile != "" {
		reg, err := publishers.LoadRegistry(r.cfg.PublishersFile)
		if err != nil {
			return nil, &config.ConfigError{Field: "publishers_file", Err: err}
		}
		for _, pc := range reg.Enabled() {
			if r.cfg.DisableSlack && pc.Type == publishers.TypeSlack {
				continue
			}
			cfgs = append(cfgs, pc)
		}
	}

	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), cfgs, r.log)
	if err != nil {
		return nil, &config.ConfigError{Field: "publishers", Err: err}
	}
	summaries := make([]map[string]string, 0, len(cfgs))
	for _, pc := range cfgs {
		summaries = append(summaries, map[string]string{"id": pc.ID, "type": pc.Type})
	}
	r.log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"count":         len(summaries),
		"publishers":    summaries,
		"slack_enabled": !r.cfg.DisableSlack,
	})
	return pubs, nil
}

func (r *Runner) refreshCalendar(ctx context.Context, st *state.State, now time.Time) error {
	body, err := r.comps.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch calendar: %w", err)
	}
	fragments, err := calendar.Fragments(body, r.cfg.CalendarSelector)
	if err != nil {
		return fmt.Errorf("parse calendar: %w", err)
	}
	drafts := r.extractor.Extract(fragments)

	var added int
	st.Releases, added = merge.Append(st.Releases, drafts)
	st.LastUpdate = now
	r.log.InfoObj("calendar refreshed", "calendar_meta", map[string]any{
		"fragments": len(fragments),
		"drafts":    len(drafts),
		"added":     added,
		"history":   len(st.Releases),
	})
	return nil
}

// process enriches and filters today's releases. Popularity data is looked
// up and judged first so the archive is only consulted for survivors.
func (r *Runner) process(ctx context.Context, todays []domain.Release, today civil.Date, settings config.Settings) ([]domain.Release, error) {
	engine := enrich.NewEngine(r.comps.Popularity, r.comps.Archive, enrich.Options{Concurrency: r.cfg.EnrichConcurrency}, r.log)
	filters := filter.NewEngine(settings.WhitelistedGenreKeywords, settings.BlacklistedGenreKeywords, today, r.log)

	todays, err := engine.EnrichPopularity(ctx, todays)
	if err != nil {
		return nil, fmt.Errorf("enrich popularity: %w", err)
	}
	filters.ApplyPopularity(todays)

	todays, err = engine.EnrichArchive(ctx, todays)
	if err != nil {
		return nil, fmt.Errorf("enrich archive: %w", err)
	}
	filters.ApplyArchive(todays)
	return todays, nil
}

func (r *Runner) notify(ctx context.Context, evt publishers.Event) error {
	if r.fanout.Size() == 0 {
		r.log.DebugObj("no publishers configured; skipping notifications", "run_id", evt.RunID)
		return nil
	}
	delivered, err := r.fanout.Publish(ctx, evt)
	if err != nil {
		r.log.WarnObj("publish reported errors", "publish_error", map[string]any{
			"run_id":    evt.RunID,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
	if err := publishers.IgnoreMalformed(err); err != nil {
		return fmt.Errorf("publish releases: %w", err)
	}
	r.log.InfoObj("releases published", "publish_meta", map[string]any{
		"run_id":     evt.RunID,
		"publishers": r.fanout.Size(),
		"releases":   len(evt.Releases),
	})
	return nil
}

// Close releases the state store and any publisher connections.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.fanout != nil {
		errs = append(errs, r.fanout.Close())
	}
	if r.comps.Store != nil {
		errs = append(errs, r.comps.Store.Close())
	}
	return errors.Join(errs...)
}
