// Package engine coordinates the live/fallback data sync: mode resolution,
// bulk loads, realtime merge, and re-aggregation. All snapshot writes happen
// on one run-loop goroutine, so merges never interleave mid-update.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentidp/agentwatch/internal/aggregate"
	"github.com/agentidp/agentwatch/internal/backend"
	"github.com/agentidp/agentwatch/internal/config"
	"github.com/agentidp/agentwatch/internal/fixture"
	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/metrics"
	"github.com/agentidp/agentwatch/internal/mode"
	"github.com/agentidp/agentwatch/internal/model"
	"github.com/agentidp/agentwatch/internal/normalize"
	"github.com/agentidp/agentwatch/internal/snapshot"
	"github.com/agentidp/agentwatch/internal/stream"
)

// Engine owns the sync lifecycle for one session.
type Engine struct {
	cfg     config.BackendConfig
	client  backend.Client
	tracker *mode.Tracker
	snap    *snapshot.Store
	hub     *stream.Hub
	log     logger.Logger
	now     func() time.Time

	mu        sync.Mutex
	tokenFeed *backend.TokenFeed
	auditFeed *backend.AuditFeed
	quit      chan struct{}
	loopDone  chan struct{}
	tickStop  chan struct{}
	started   bool
	stopped   bool
}

// New assembles an engine. client may be nil; the engine then resolves to
// mock mode regardless of configuration.
func New(cfg config.BackendConfig, client backend.Client, tracker *mode.Tracker, snap *snapshot.Store, hub *stream.Hub, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Engine{
		cfg:     cfg,
		client:  client,
		tracker: tracker,
		snap:    snap,
		hub:     hub,
		log:     log,
		now:     time.Now,
	}
}

// Start resolves the mode, performs the initial load, and, in live mode,
// opens the realtime feeds. It never returns an error to the caller: every
// failure path degrades to demonstration data so the dashboard always has
// something to render.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	// Mock is decided before any backend call is attempted.
	if e.tracker.Init(e.cfg.URL, e.cfg.Key) == mode.Mock {
		e.loadFixtures()
		return
	}
	if e.client == nil {
		e.tracker.Demote(errors.New("backend client not configured"))
		e.loadFixtures()
		return
	}

	e.log.Info("Starting live sync",
		logger.String("backend", e.cfg.URL),
		logger.Int("fetch_limit", e.cfg.FetchLimit))

	e.bulkLoad(ctx, "initial")
	if !e.tracker.IsLive() {
		return
	}

	e.openFeeds(ctx)
	e.startLoop()
	e.startPeriodicRefresh(ctx)
}

// Refresh re-runs the bulk load. A no-op once the session has degraded to
// demonstration data.
func (e *Engine) Refresh(ctx context.Context) mode.Mode {
	if !e.tracker.IsLive() {
		return e.tracker.Current()
	}
	e.bulkLoad(ctx, "manual")
	return e.tracker.Current()
}

// Mode reports the session's current data-source mode.
func (e *Engine) Mode() mode.Mode {
	return e.tracker.Current()
}

// TrafficFor returns traffic buckets for the given lookback span. The
// default span is served from the stored aggregate; other spans are derived
// client-side from the snapshot's audit log.
func (e *Engine) TrafficFor(span time.Duration) []model.TrafficBucket {
	if span == aggregate.DefaultSpan {
		return e.snap.Traffic()
	}
	return aggregate.Traffic(e.snap.AuditEvents(), span, e.now())
}

// Stop tears down feeds, the run loop, and the stream hub. Idempotent; no
// merge happens after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.stopSync()
	e.hub.Close()

	e.log.Info("Sync engine stopped")
}

// stopSync closes the realtime feeds and waits for the run loop to drain.
// Safe to call more than once; taken fields are nilled under the lock.
func (e *Engine) stopSync() {
	e.mu.Lock()
	quit := e.quit
	loopDone := e.loopDone
	tickStop := e.tickStop
	tokenFeed := e.tokenFeed
	auditFeed := e.auditFeed
	e.quit = nil
	e.tickStop = nil
	e.tokenFeed = nil
	e.auditFeed = nil
	e.mu.Unlock()

	if quit != nil {
		close(quit)
		<-loopDone
	}
	if tickStop != nil {
		close(tickStop)
	}
	if tokenFeed != nil {
		tokenFeed.Close()
	}
	if auditFeed != nil {
		auditFeed.Close()
	}
}

// loadFixtures installs the demonstration dataset.
func (e *Engine) loadFixtures() {
	now := e.now()
	e.snap.ReplaceAccessEvents(fixture.AccessEvents(now))
	e.snap.ReplaceAuditEvents(fixture.AuditEvents(now))
	e.snap.ReplaceAgents(fixture.Agents())
	e.snap.ReplaceUsage(fixture.Usage())
	e.snap.ReplaceTraffic(fixture.Traffic(now))
	e.log.Info("Demonstration dataset loaded")
}

type bulkResult struct {
	tokens     []model.RawTokenRow
	tokensErr  error
	audits     []model.RawAuditRow
	auditsErr  error
	agents     []model.RawAgentRow
	agentsErr  error
	usage      []model.RawUsageRow
	usageErr   error
	traffic    []model.RawTrafficRow
	trafficErr error
}

// bulkLoad fetches all five datasets concurrently and applies them
// per-dataset: raw-event failures demote the whole session, aggregate
// failures degrade to client-side computation only.
func (e *Engine) bulkLoad(ctx context.Context, trigger string) {
	var (
		res bulkResult
		wg  sync.WaitGroup
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		res.tokens, res.tokensErr = e.client.ListTokenRows(ctx, e.cfg.FetchLimit)
		e.countFetch("token_events", res.tokensErr)
	}()
	go func() {
		defer wg.Done()
		res.audits, res.auditsErr = e.client.ListAuditRows(ctx, e.cfg.FetchLimit)
		e.countFetch("audit_events", res.auditsErr)
	}()
	go func() {
		defer wg.Done()
		res.agents, res.agentsErr = e.client.ListAgentRows(ctx)
		e.countFetch("agents", res.agentsErr)
	}()
	go func() {
		defer wg.Done()
		res.usage, res.usageErr = e.client.AggregateUsage(ctx, e.cfg.FetchLimit)
		e.countFetch("usage", res.usageErr)
	}()
	go func() {
		defer wg.Done()
		res.traffic, res.trafficErr = e.client.AggregateTraffic(ctx, aggregate.DefaultSpan)
		e.countFetch("traffic", res.trafficErr)
	}()
	wg.Wait()

	if err := firstErr(res.tokensErr, res.auditsErr, res.agentsErr); err != nil {
		metrics.RefreshesTotal.WithLabelValues(trigger, "error").Inc()
		e.tracker.Demote(err)
		// The feeds must go down with the session: a demoted snapshot holds
		// demonstration data and must never absorb live backend events.
		e.stopSync()
		e.loadFixtures()
		return
	}

	accessEvents := make([]model.AccessEvent, 0, len(res.tokens))
	for _, row := range res.tokens {
		accessEvents = append(accessEvents, normalize.AccessEvent(row))
	}
	auditEvents := make([]model.AuditEvent, 0, len(res.audits))
	for _, row := range res.audits {
		auditEvents = append(auditEvents, normalize.AuditEvent(row))
	}
	agents := make([]model.Agent, 0, len(res.agents))
	for _, row := range res.agents {
		agents = append(agents, normalize.Agent(row))
	}

	e.snap.ReplaceAccessEvents(accessEvents)
	e.snap.ReplaceAuditEvents(auditEvents)
	e.snap.ReplaceAgents(agents)
	e.applyUsage(res, accessEvents)
	e.applyTraffic(res, auditEvents)

	metrics.RefreshesTotal.WithLabelValues(trigger, "success").Inc()
	e.log.Info("Snapshot loaded",
		logger.String("trigger", trigger),
		logger.Int("access_events", len(accessEvents)),
		logger.Int("audit_events", len(auditEvents)),
		logger.Int("agents", len(agents)))
}

func (e *Engine) applyUsage(res bulkResult, accessEvents []model.AccessEvent) {
	switch {
	case res.usageErr == nil:
		usage := make([]model.UsageEntry, 0, len(res.usage))
		for _, row := range res.usage {
			usage = append(usage, model.UsageEntry{Resource: row.Resource, Calls: row.Calls})
		}
		e.snap.ReplaceUsage(usage)
	case len(accessEvents) > 0:
		e.log.Warn("Usage aggregate unavailable, deriving client-side",
			logger.Error(res.usageErr))
		e.snap.ReplaceUsage(aggregate.Usage(accessEvents))
	default:
		e.log.Warn("Usage aggregate unavailable, serving demo series",
			logger.Error(res.usageErr))
		e.snap.ReplaceUsage(fixture.Usage())
	}
}

func (e *Engine) applyTraffic(res bulkResult, auditEvents []model.AuditEvent) {
	switch {
	case res.trafficErr == nil:
		e.snap.ReplaceTraffic(aggregate.FromServerRows(res.traffic, aggregate.DefaultSpan))
	case len(auditEvents) > 0:
		e.log.Warn("Traffic aggregate unavailable, deriving client-side",
			logger.Error(res.trafficErr))
		e.snap.ReplaceTraffic(aggregate.Traffic(auditEvents, aggregate.DefaultSpan, e.now()))
	default:
		e.log.Warn("Traffic aggregate unavailable, serving demo series",
			logger.Error(res.trafficErr))
		e.snap.ReplaceTraffic(fixture.Traffic(e.now()))
	}
}

// openFeeds opens the two realtime subscriptions. A feed that fails to open
// is logged and skipped; the session stays live on bulk data alone.
func (e *Engine) openFeeds(ctx context.Context) {
	tokenFeed, err := e.client.SubscribeTokenInserts(ctx, e.cfg.StreamBuffer)
	if err != nil {
		e.log.Warn("Token realtime feed unavailable", logger.Error(err))
	}
	auditFeed, err := e.client.SubscribeAuditInserts(ctx, e.cfg.StreamBuffer)
	if err != nil {
		e.log.Warn("Audit realtime feed unavailable", logger.Error(err))
	}

	e.mu.Lock()
	e.tokenFeed = tokenFeed
	e.auditFeed = auditFeed
	e.mu.Unlock()
}

// startLoop launches the single goroutine that consumes both feeds. The two
// channels are selected independently: a burst on one never blocks or drops
// messages on the other, and each merge runs to completion before the next
// message is taken.
func (e *Engine) startLoop() {
	e.mu.Lock()
	e.quit = make(chan struct{})
	e.loopDone = make(chan struct{})
	quit := e.quit
	loopDone := e.loopDone
	tokenFeed := e.tokenFeed
	auditFeed := e.auditFeed
	e.mu.Unlock()

	var tokenRows <-chan model.RawTokenRow
	if tokenFeed != nil {
		tokenRows = tokenFeed.Rows()
	}
	var auditRows <-chan model.RawAuditRow
	if auditFeed != nil {
		auditRows = auditFeed.Rows()
	}

	go func() {
		defer close(loopDone)
		for {
			select {
			case <-quit:
				return
			case row := <-tokenRows:
				e.mergeTokenRow(row)
			case row := <-auditRows:
				e.mergeAuditRow(row)
			}
		}
	}()
}

func (e *Engine) mergeTokenRow(row model.RawTokenRow) {
	ev := normalize.AccessEvent(row)
	e.snap.PrependAccessEvent(ev)
	e.snap.ReplaceUsage(aggregate.Usage(e.snap.AccessEvents()))
	e.hub.Publish(stream.Event{
		Kind:      stream.KindAccessEvent,
		Timestamp: e.now().Unix(),
		Payload:   ev,
	})
	e.log.Debug("Merged realtime token event",
		logger.String("id", ev.ID),
		logger.String("agent", ev.AgentName))
}

func (e *Engine) mergeAuditRow(row model.RawAuditRow) {
	ev := normalize.AuditEvent(row)
	e.snap.PrependAuditEvent(ev)
	e.snap.ReplaceTraffic(aggregate.Traffic(e.snap.AuditEvents(), aggregate.DefaultSpan, e.now()))
	e.hub.Publish(stream.Event{
		Kind:      stream.KindAuditEvent,
		Timestamp: e.now().Unix(),
		Payload:   ev,
	})
	e.log.Debug("Merged realtime audit event",
		logger.String("id", ev.ID),
		logger.String("subject", ev.Subject))
}

func (e *Engine) startPeriodicRefresh(ctx context.Context) {
	if e.cfg.RefreshInterval <= 0 {
		return
	}

	e.mu.Lock()
	e.tickStop = make(chan struct{})
	stop := e.tickStop
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !e.tracker.IsLive() {
					return
				}
				e.bulkLoad(ctx, "periodic")
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) countFetch(dataset string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FetchesTotal.WithLabelValues(dataset, status).Inc()
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
