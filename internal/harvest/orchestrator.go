package harvest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/jobharvest/internal/channel"
	"github.com/nao1215/jobharvest/internal/dedup"
	"github.com/nao1215/jobharvest/internal/limiter"
	"github.com/nao1215/jobharvest/internal/model"
	"github.com/nao1215/jobharvest/internal/normalize"
	"github.com/nao1215/jobharvest/internal/store"
)

// DefaultConcurrency is the limiter capacity used when none is given.
const DefaultConcurrency = 8

// State is a step of the session state machine.
type State string

const (
	// StateSearching fetches one page of a channel.
	StateSearching State = "searching"
	// StateEnrichingPage turns the listings of a fetched page into records.
	StateEnrichingPage State = "enriching_page"
	// StateFallbackTriggered switches from the API to the HTML channel.
	StateFallbackTriggered State = "fallback_triggered"
	// StateDone ends the session.
	StateDone State = "done"
)

// Transition is reported to the transition hook on every state change.
type Transition struct {
	State   State
	Channel model.Channel
	Page    int
}

// CallCounter reports the number of remote calls made so far.
// transport.Client implements it.
type CallCounter interface {
	RequestCount() int64
}

// stopReason tells why a channel pass ended.
type stopReason int

const (
	stopExhausted stopReason = iota
	stopDesired
	stopPageLimit
	stopPageFailed
	stopFirstPageFailed
	stopFirstPageEmpty
	stopBudget
	stopCancelled
)

func (r stopReason) String() string {
	switch r {
	case stopExhausted:
		return "exhausted"
	case stopDesired:
		return "desired_reached"
	case stopPageLimit:
		return "page_limit"
	case stopPageFailed:
		return "page_failed"
	case stopFirstPageFailed:
		return "first_page_failed"
	case stopFirstPageEmpty:
		return "first_page_empty"
	case stopBudget:
		return "time_budget"
	case stopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Orchestrator runs harvest sessions over an API and an HTML channel.
type Orchestrator struct {
	api  channel.Strategy
	html channel.Strategy

	limiter  *limiter.Limiter
	sink     store.Sink
	calls    CallCounter
	logger   *slog.Logger
	now      func() time.Time
	runID    string
	residual bool
	onChange func(Transition)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimiter sets the limiter detail fetches run through.
func WithLimiter(l *limiter.Limiter) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithSink sets where records are written.
func WithSink(s store.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// WithCallCounter sets the source of the remote call count.
func WithCallCounter(c CallCounter) Option {
	return func(o *Orchestrator) {
		o.calls = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunID fixes the session identifier instead of generating one.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// WithResidualPass toggles the HTML top-up pass after an API pass that
// stopped on its page limit or a page failure. It is on by default.
func WithResidualPass(on bool) Option {
	return func(o *Orchestrator) {
		o.residual = on
	}
}

// WithTransitionHook registers fn to observe state changes. fn is called
// from the pagination driver only.
func WithTransitionHook(fn func(Transition)) Option {
	return func(o *Orchestrator) {
		o.onChange = fn
	}
}

// New returns an Orchestrator. Either strategy may be nil, but not both.
// The API strategy is tried first when present.
func New(api, html channel.Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:      api,
		html:     html,
		residual: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.limiter == nil {
		o.limiter = limiter.New(DefaultConcurrency)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sink == nil {
		o.sink = discard{}
	}
	return o
}

// Run executes one session with criteria c and returns its summary.
//
// A summary is returned even on error. When no record was produced the
// error is ErrNoRecords or ErrUpstreamFailed; a cancelled context returns
// ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, c model.SearchCriteria) (model.Summary, error) {
	if err := c.Validate(); err != nil {
		return model.Summary{}, err
	}
	if isNil(o.api) && isNil(o.html) {
		return model.Summary{}, ErrNoChannel
	}

	runID := o.runID
	if runID == "" {
		runID = NewRunID()
	}
	var baseline int64
	if o.calls != nil {
		baseline = o.calls.RequestCount()
	}

	r := &run{
		o:       o,
		c:       c,
		s:       newSession(runID, c, o.now()),
		intake:  dedup.New(),
		emitted: dedup.New(),
		logger:  o.logger.With("run_id", runID),
	}
	if c.TimeBudget > 0 {
		r.deadline = r.s.startedAt.Add(c.TimeBudget)
	}

	r.logger.Info("harvest started",
		"keyword", c.Keyword,
		"places", c.PlaceIDs,
		"desired", c.DesiredCount,
		"max_pages", c.MaxPages,
		"details", c.CollectDetails,
	)

	var (
		fallback, residual bool
		last               stopReason
	)
	if !isNil(o.api) {
		last = r.pass(ctx, o.api)
		switch {
		case isNil(o.html):
		case last == stopFirstPageFailed || last == stopFirstPageEmpty:
			fallback = true
			o.transition(Transition{State: StateFallbackTriggered, Channel: model.ChannelHTML})
			r.logger.Warn("falling back to html channel", "reason", last.String())
			last = r.pass(ctx, o.html)
		case o.residual && (last == stopPageLimit || last == stopPageFailed) &&
			r.s.Saved() < c.DesiredCount && !r.budgetExceeded():
			residual = true
			r.logger.Info("starting residual html pass", "remaining", r.s.Remaining(), "reason", last.String())
			last = r.pass(ctx, o.html)
		}
	} else {
		last = r.pass(ctx, o.html)
	}
	extra := r.startURLPasses(ctx, &last)
	o.transition(Transition{State: StateDone})

	summary := r.s.summary(o.now())
	summary.Fallback = fallback
	summary.ResidualPass = residual
	summary.StartURLPasses = extra
	summary.BudgetExceeded = r.budgetHit
	if o.calls != nil {
		summary.RemoteCalls = o.calls.RequestCount() - baseline
	}

	var err error
	switch {
	case summary.RecordsSaved >= c.DesiredCount:
		summary.Outcome = model.OutcomeComplete
	case summary.RecordsSaved > 0:
		summary.Outcome = model.OutcomePartial
	case last == stopFirstPageFailed:
		summary.Outcome = model.OutcomeUpstreamFailed
		err = ErrUpstreamFailed
	default:
		summary.Outcome = model.OutcomeNoData
		err = ErrNoRecords
	}
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	}

	r.logger.Info("harvest finished",
		"outcome", summary.Outcome,
		"saved", summary.RecordsSaved,
		"pages", summary.PagesProcessed,
		"remote_calls", summary.RemoteCalls,
		"errors", summary.Errors,
		"fallback", summary.Fallback,
		"elapsed", summary.Elapsed,
	)
	return summary, err
}

// startURLPasses runs one HTML pass per extra start URL while records are
// still wanted. A pass that got an answer replaces *last, so a session is
// reported as upstream_failed only when no pass reached the site. It
// returns the number of passes run.
func (r *run) startURLPasses(ctx context.Context, last *stopReason) int {
	if isNil(r.o.html) {
		return 0
	}
	n := 0
	for _, u := range r.c.ExtraStartURLs {
		if ctx.Err() != nil || r.s.Full() || r.budgetExceeded() {
			break
		}
		r.c.StartURL = u
		r.logger.Info("starting start url pass", "start_url", u, "remaining", r.s.Remaining())
		reason := r.pass(ctx, r.o.html)
		n++
		if reason != stopFirstPageFailed {
			*last = reason
		}
	}
	return n
}

func (o *Orchestrator) transition(t Transition) {
	if o.onChange != nil {
		o.onChange(t)
	}
}

// run holds the per-session state shared by the passes.
type run struct {
	o        *Orchestrator
	c        model.SearchCriteria
	s        *Session
	intake   *dedup.Set
	emitted  *dedup.Set
	logger   *slog.Logger
	deadline time.Time

	// budgetHit is only touched by the pagination driver.
	budgetHit bool
}

func (r *run) budgetExceeded() bool {
	if r.deadline.IsZero() {
		return false
	}
	if !r.o.now().Before(r.deadline) {
		r.budgetHit = true
		return true
	}
	return false
}

// pass walks the pages of strat from page 0 until a stop condition.
func (r *run) pass(ctx context.Context, strat channel.Strategy) stopReason {
	ch := strat.Name()
	logger := r.logger.With("channel", ch)
	seen := 0

	for page := 0; ; page++ {
		switch {
		case ctx.Err() != nil:
			return stopCancelled
		case r.budgetExceeded():
			logger.Info("time budget exhausted", "page", page)
			return stopBudget
		case r.s.Full():
			return stopDesired
		case page >= r.c.MaxPages:
			return stopPageLimit
		}

		r.o.transition(Transition{State: StateSearching, Channel: ch, Page: page})
		res, err := strat.FetchPage(ctx, page, r.c)
		if err != nil {
			if ctx.Err() != nil {
				return stopCancelled
			}
			r.s.addError(ch)
			logger.Warn("page fetch failed", "page", page, "error", err)
			if page == 0 {
				return stopFirstPageFailed
			}
			return stopPageFailed
		}
		if len(res.Items) == 0 {
			logger.Debug("page returned no items", "page", page)
			if page == 0 {
				return stopFirstPageEmpty
			}
			return stopExhausted
		}
		r.s.addPage(ch)
		seen += len(res.Items)
		logger.Debug("page fetched", "page", page, "items", len(res.Items), "total", res.Total)

		r.o.transition(Transition{State: StateEnrichingPage, Channel: ch, Page: page})
		if stop, ok := r.enrichPage(ctx, strat, res.Items); ok {
			return stop
		}

		if ch == model.ChannelAPI && len(res.Items) < r.c.PageSize {
			return stopExhausted
		}
		if res.TotalKnown && seen >= res.Total {
			return stopExhausted
		}
	}
}

// enrichPage processes the listings of one page and joins every task it
// started. It returns ok when the pass must stop.
func (r *run) enrichPage(ctx context.Context, strat channel.Strategy, items []model.ListingRecord) (stopReason, bool) {
	g := new(errgroup.Group)
	join := func() {
		_ = g.Wait() //nolint:errcheck // tasks report through the session
		g = new(errgroup.Group)
	}

	for i := 0; i < len(items); i++ {
		if ctx.Err() != nil {
			join()
			return stopCancelled, true
		}
		if r.budgetExceeded() {
			join()
			r.logger.Info("time budget exhausted mid-page", "channel", strat.Name())
			return stopBudget, true
		}
		if !r.s.Reserve() {
			// Wait for in-flight tasks; a dropped duplicate frees its slot.
			join()
			if !r.s.Reserve() {
				return stopDesired, true
			}
		}

		listing := items[i]
		if listing.Channel == "" {
			listing.Channel = strat.Name()
		}
		if !r.intake.ShouldProcess(normalize.IntakeIdentity(listing)) {
			r.s.Release()
			continue
		}

		if !r.c.CollectDetails || (listing.DetailURL == "" && listing.NativeID == "") {
			r.emit(ctx, listing, nil)
			continue
		}
		f := r.o.limiter.Submit(ctx, func(ctx context.Context) error {
			r.enrich(ctx, strat, listing)
			return nil
		})
		g.Go(func() error {
			if err := f.Wait(); err != nil {
				// The task never ran: its context was done before a slot freed.
				r.s.Release()
				return err
			}
			return nil
		})
	}
	join()
	return 0, false
}

// enrich fetches the detail of listing, degrading to the listing alone.
func (r *run) enrich(ctx context.Context, strat channel.Strategy, listing model.ListingRecord) {
	detail, err := strat.FetchDetail(ctx, listing)
	if errors.Is(err, channel.ErrDetailUnavailable) && !isNil(r.o.html) && strat.Name() != r.o.html.Name() {
		detail, err = r.o.html.FetchDetail(ctx, listing)
	}
	if err != nil {
		if !errors.Is(err, channel.ErrDetailUnavailable) {
			r.s.addError(listing.Channel)
			r.logger.Warn("detail fetch failed, keeping listing",
				"channel", listing.Channel,
				"id", listing.NativeID,
				"url", listing.DetailURL,
				"error", err,
			)
		}
		detail = nil
	}
	r.emit(ctx, listing, detail)
}

// emit merges and writes one record. The caller holds a reservation.
func (r *run) emit(ctx context.Context, listing model.ListingRecord, detail *model.DetailRecord) {
	rec := normalize.Merge(listing, detail, r.o.now())
	if !r.emitted.ShouldProcess(rec.ID) {
		r.s.Release()
		r.logger.Debug("duplicate record dropped", "id", rec.ID)
		return
	}
	if err := r.o.sink.Append(ctx, rec); err != nil {
		r.s.Release()
		r.s.addError(listing.Channel)
		r.logger.Error("failed to write record", "id", rec.ID, "error", err)
		return
	}
	r.s.addSaved(listing.Channel)
	r.logger.Debug("record saved", "id", rec.ID, "saved", r.s.Saved(), "desired", r.c.DesiredCount)
}

// isNil reports whether s is nil, including a typed nil pointer.
func isNil(s channel.Strategy) bool {
	if s == nil {
		return true
	}
	switch v := s.(type) {
	case *channel.APIStrategy:
		return v == nil
	case *channel.HTMLStrategy:
		return v == nil
	}
	return false
}

type discard struct{}

func (discard) Append(context.Context, model.CanonicalRecord) error { return nil }
func (discard) Close() error                                        { return nil }
