// tagwatch polls Tag Manager containers, diffs newly published versions
// against the last seen ones, runs GA impact analysis on the changes and
// annotates the mapped GA4 properties.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tagwatch/tagwatch/pkg/changes"
	"github.com/tagwatch/tagwatch/pkg/config"
	"github.com/tagwatch/tagwatch/pkg/container"
	"github.com/tagwatch/tagwatch/pkg/events"
	"github.com/tagwatch/tagwatch/pkg/ga4"
	"github.com/tagwatch/tagwatch/pkg/googleauth"
	"github.com/tagwatch/tagwatch/pkg/gtm"
	"github.com/tagwatch/tagwatch/pkg/history"
	"github.com/tagwatch/tagwatch/pkg/impact"
	"github.com/tagwatch/tagwatch/pkg/logging"
	"github.com/tagwatch/tagwatch/pkg/mapping"
	"github.com/tagwatch/tagwatch/pkg/metrics"
	"github.com/tagwatch/tagwatch/pkg/report"
	"github.com/tagwatch/tagwatch/pkg/state"
)

func main() {
	configPath := flag.String("config", "tagwatch.yaml", "Path to the config file")
	initOnly := flag.Bool("init", false, "Record current live versions without analyzing")
	containers := flag.String("containers", "", "Comma-separated container public ids to check (default: all mapped)")
	flag.Parse()

	if err := run(*configPath, *initOnly, *containers); err != nil {
		fmt.Fprintf(os.Stderr, "tagwatch: %v\n", err)
		os.Exit(1)
	}
}

// checker holds everything one run needs.
type checker struct {
	cfg       *config.Config
	logger    logging.Logger
	registry  *metrics.Registry
	gtm       *gtm.Client
	ga4       *ga4.Client
	analyzer  *impact.Analyzer
	store     *state.Store
	publisher events.Publisher
	history   *history.Store
	runID     string
	initOnly  bool
}

func run(configPath string, initOnly bool, containerFilter string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel)).With(logging.RunID(runID))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	creds, err := googleauth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return err
	}
	tokens := googleauth.NewTokenSource(creds, googleauth.Scopes, nil)

	entries, err := mapping.Load(cfg.MappingFile)
	if err != nil {
		return err
	}
	entries = filterEntries(entries, containerFilter)
	if len(entries) == 0 {
		return fmt.Errorf("no containers match filter %q", containerFilter)
	}

	store, err := state.Open(cfg.StateFile)
	if err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.Events.Transport, cfg.Events.Endpoint, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var historyStore *history.Store
	if cfg.History.DSN != "" {
		historyStore, err = history.Open(ctx, cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer historyStore.Close()
	}

	registry := metrics.NewRegistry()
	if cfg.MetricsListen != "" {
		_, stop, err := startMetricsServer(cfg.MetricsListen, registry, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	c := &checker{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		gtm:       gtm.NewClient(tokens, nil, logger),
		ga4:       ga4.NewClient(tokens, nil, logger),
		analyzer:  impact.NewAnalyzer(cfg.Impact, logger),
		store:     store,
		publisher: publisher,
		history:   historyStore,
		runID:     runID,
		initOnly:  initOnly,
	}

	out := report.Report{RunID: runID, GeneratedAt: time.Now().UTC()}
	for _, entry := range entries {
		cr := c.checkContainer(ctx, entry)
		out.Containers = append(out.Containers, cr)
	}

	if err := store.Save(); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		if err := report.Write(cfg.ReportFile, &out); err != nil {
			return err
		}
	}

	logger.Info("run complete", logging.Count(len(out.Containers)))
	return nil
}

func filterEntries(entries []mapping.Entry, filter string) []mapping.Entry {
	if filter == "" {
		return entries
	}
	wanted := make(map[string]bool)
	for _, id := range strings.Split(filter, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	var out []mapping.Entry
	for _, entry := range entries {
		if wanted[entry.ContainerPublicID] {
			out = append(out, entry)
		}
	}
	return out
}

func (c *checker) checkContainer(ctx context.Context, entry mapping.Entry) report.ContainerReport {
	start := time.Now()
	cr := report.ContainerReport{
		PublicID:   entry.ContainerPublicID,
		PropertyID: entry.PropertyID,
	}
	logger := c.logger.With(logging.ContainerID(entry.ContainerPublicID))

	fail := func(err error) report.ContainerReport {
		logger.Error("container check failed", logging.Error(err))
		c.registry.RecordRun("error", time.Since(start))
		cr.Error = err.Error()
		return cr
	}

	cont, err := c.gtm.FindContainerByPublicID(ctx, entry.ContainerPublicID)
	if err != nil {
		return fail(err)
	}
	cr.Name = cont.Name

	live, err := c.gtm.LiveVersion(ctx, cont.Path)
	if err != nil {
		return fail(err)
	}
	cr.NewVersionID = live.ContainerVersionID

	prev, known := c.store.Get(entry.ContainerPublicID)
	if !known || c.initOnly {
		c.store.Set(entry.ContainerPublicID, live.ContainerVersionID)
		cr.FirstRun = true
		logger.Info("recorded initial live version", logging.VersionID(live.ContainerVersionID))
		c.registry.RecordRun("init", time.Since(start))
		return cr
	}
	if live.ContainerVersionID == prev.LiveVersion {
		logger.Debug("live version unchanged", logging.VersionID(live.ContainerVersionID))
		c.registry.RecordRun("unchanged", time.Since(start))
		return cr
	}

	cr.OldVersionID = prev.LiveVersion
	cr.Rollback = isRollback(prev.LiveVersion, live.ContainerVersionID)
	logger.Info("new live version detected",
		logging.String("old_version", prev.LiveVersion),
		logging.VersionID(live.ContainerVersionID),
		logging.Bool("rollback", cr.Rollback))

	oldVersion, err := c.gtm.Version(ctx, cont.Path, prev.LiveVersion)
	if err != nil {
		return fail(err)
	}

	graphStart := time.Now()
	analysis := c.analyzer.Analyze(oldVersion, live)
	c.recordAnalysis(analysis, time.Since(graphStart))

	cr.Changes = report.SummarizeChanges(analysis.Changes)
	cr.Impacted = analysis.Result.Impacted
	cr.Descriptions = analysis.Result.Descriptions
	for _, path := range analysis.Result.Paths {
		cr.Paths = append(cr.Paths, path.Render(analysis.Graph))
	}

	if c.cfg.Annotation.Enabled {
		c.annotate(ctx, entry, live, cr.Rollback, logger)
	}

	c.store.Set(entry.ContainerPublicID, live.ContainerVersionID)
	c.publish(entry, &cr)
	c.recordHistory(ctx, entry, &cr, logger)

	c.registry.RecordRun("analyzed", time.Since(start))
	return cr
}

func (c *checker) recordAnalysis(analysis impact.Analysis, elapsed time.Duration) {
	c.registry.ObserveGraph(analysis.Graph.NodeCount(), analysis.Graph.EdgeCount(), elapsed)
	c.registry.RecordImpact(analysis.Result.Impacted)
	for entity, delta := range map[string]changes.Delta{
		"tag":            analysis.Changes.Tags,
		"variable":       analysis.Changes.Variables,
		"trigger":        analysis.Changes.Triggers,
		"client":         analysis.Changes.Clients,
		"transformation": analysis.Changes.Transformations,
	} {
		c.registry.RecordChanges(entity, len(delta.Added), len(delta.Modified), len(delta.Deleted))
	}
}

func (c *checker) annotate(ctx context.Context, entry mapping.Entry, live *container.Version, rollback bool, logger logging.Logger) {
	annotation, err := ga4.BuildAnnotation(live, entry.ContainerPublicID, rollback)
	if err != nil {
		logger.Warn("annotation skipped", logging.Error(err))
		c.registry.RecordAnnotation(err)
		return
	}
	err = c.ga4.CreateAnnotation(ctx, entry.PropertyID, annotation)
	c.registry.RecordAnnotation(err)
	if err != nil {
		logger.Error("annotation failed", logging.PropertyID(entry.PropertyID), logging.Error(err))
	}
}

func (c *checker) publish(entry mapping.Entry, cr *report.ContainerReport) {
	event := &events.Event{
		RunID:        c.runID,
		Timestamp:    time.Now().UTC(),
		ContainerID:  entry.ContainerPublicID,
		PropertyID:   entry.PropertyID,
		NewVersionID: cr.NewVersionID,
		OldVersionID: cr.OldVersionID,
		Rollback:     cr.Rollback,
		ChangedCount: cr.Changes.Total(),
		Impacted:     cr.Impacted,
		Descriptions: cr.Descriptions,
	}
	if err := c.publisher.Publish(event); err != nil {
		c.logger.Warn("event publish failed",
			logging.ContainerID(entry.ContainerPublicID),
			logging.Error(err))
	}
}

func (c *checker) recordHistory(ctx context.Context, entry mapping.Entry, cr *report.ContainerReport, logger logging.Logger) {
	if c.history == nil {
		return
	}
	run := &history.Run{
		RunID:        c.runID,
		ContainerID:  entry.ContainerPublicID,
		PropertyID:   entry.PropertyID,
		OldVersionID: cr.OldVersionID,
		NewVersionID: cr.NewVersionID,
		Rollback:     cr.Rollback,
		ChangedCount: cr.Changes.Total(),
		Impacted:     cr.Impacted,
		Descriptions: cr.Descriptions,
		RanAt:        time.Now().UTC(),
	}
	if err := c.history.RecordRun(ctx, run); err != nil {
		logger.Warn("history record failed", logging.Error(err))
	}
}

// startMetricsServer exposes the run's registry on /metrics so a scraper can
// observe counters while the checks are in flight. Returns the bound address
// and a shutdown func.
func startMetricsServer(addr string, registry *metrics.Registry, logger logging.Logger) (string, func(), error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.Prometheus(), promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux}
	go server.Serve(listener)

	bound := listener.Addr().String()
	logger.Info("metrics listening", logging.String("addr", bound))
	return bound, func() { server.Close() }, nil
}

// isRollback reports whether a numerically lower version id replaced a higher
// one. Non-numeric ids never count as rollbacks.
func isRollback(oldID, newID string) bool {
	oldN, err1 := strconv.Atoi(oldID)
	newN, err2 := strconv.Atoi(newID)
	return err1 == nil && err2 == nil && newN < oldN
}
