// Package collector orchestrates a collection run: classify each target,
// authenticate, enumerate its entities, fan the detail fetches out over a
// bounded pool and normalize the payloads into flat records. Nothing here
// aborts the run; every failure lands in the report of the target it
// belongs to.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

var errFactory = errors.New()

type collector struct {
	registry *backend.Registry
	creds    backend.CredentialSource
	cfg      Config
	cats     []inventory.Category
}

// targetOutcome carries one target's report and records back to the
// aggregating goroutine.
type targetOutcome struct {
	report  TargetReport
	records map[string][]inventory.DetailRecord
}

func New(registry *backend.Registry, creds backend.CredentialSource, cfg Config) (Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	names := cfg.Categories
	if len(names) == 0 {
		names = inventory.CategoryNames()
	}

	cats := make([]inventory.Category, 0, len(names))

	for _, name := range names {
		cat, _ := inventory.CategoryByName(name)
		cats = append(cats, cat)
	}

	return &collector{
		registry: registry,
		creds:    creds,
		cfg:      cfg,
		cats:     cats,
	}, nil
}

func (c *collector) Collect(ctx context.Context, targets []inventory.Target) (*Report, error) {
	if len(targets) == 0 {
		return nil, errFactory.New(ErrNoTargets)
	}

	report := &Report{
		RunID:      uuid.NewString(),
		BatchEpoch: time.Now().Unix(),
		StartedAt:  time.Now(),
		Records:    make(map[string][]inventory.DetailRecord),
	}

	normalizer := inventory.NewNormalizer(report.BatchEpoch)

	logger.Info().
		Str("run_id", report.RunID).
		Int("targets", len(targets)).
		Int("categories", len(c.cats)).
		Msg("collection run starting")

	targetCh := make(chan inventory.Target)
	outcomeCh := make(chan targetOutcome)

	workers := c.cfg.TargetConcurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	var wg sync.WaitGroup

	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for target := range targetCh {
				outcomeCh <- c.collectTarget(ctx, target, normalizer)
			}
		}()
	}

	go func() {
		defer close(targetCh)

		for _, target := range targets {
			select {
			case targetCh <- target:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	for oc := range outcomeCh {
		report.Targets = append(report.Targets, oc.report)
		for cat, records := range oc.records {
			report.Records[cat] = append(report.Records[cat], records...)
		}
	}

	report.FinishedAt = time.Now()

	logger.Info().
		Str("run_id", report.RunID).
		Int("entities", report.TotalEntities()).
		Int("records", report.TotalRecords()).
		Bool("errors", report.HasErrors()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("collection run finished")

	return report, nil
}

// connect classifies the target and returns a live session for it. Declared
// kinds authenticate directly; undeclared kinds go through the probe.
func (c *collector) connect(ctx context.Context, target inventory.Target, tr *TargetReport) (backend.Strategy, *backend.Session, bool) {
	declared, err := backend.ParseKind(target.Kind)
	if err != nil {
		tr.Errors = append(tr.Errors, err)

		return nil, nil, false
	}

	if declared != backend.KindUnknown {
		strat, ok := c.registry.Strategy(declared)
		if !ok {
			tr.Errors = append(tr.Errors, errFactory.WithMessage(ErrUnknownKind, "no strategy registered for kind "+declared.String()))

			return nil, nil, false
		}

		cred, err := c.creds.Lookup(declared)
		if err != nil {
			tr.Errors = append(tr.Errors, err)

			return nil, nil, false
		}

		sess, err := strat.Authenticate(ctx, target, cred)
		if err != nil {
			tr.Errors = append(tr.Errors, err)
			logger.Warn().Str("target", target.Address).Str("kind", declared.String()).Err(err).Msg("authentication failed")

			return nil, nil, false
		}

		tr.Kind = declared

		return strat, sess, true
	}

	probe := c.registry.Probe(ctx, target, c.creds)
	tr.ProbeTrials = probe.Trials

	if probe.Kind == backend.KindUnknown {
		tr.Errors = append(tr.Errors, errFactory.WithMessage(backend.ErrProbeInconclusive, "no console flavor matched "+target.Address))
		logger.Warn().Str("target", target.Address).Int("trials", len(probe.Trials)).Msg("target flavor could not be determined")

		return nil, nil, false
	}

	tr.Kind = probe.Kind
	strat, _ := c.registry.Strategy(probe.Kind)

	return strat, probe.Session, true
}

func (c *collector) collectTarget(ctx context.Context, target inventory.Target, normalizer *inventory.Normalizer) targetOutcome {
	tr := TargetReport{
		Target:     target,
		Kind:       backend.KindUnknown,
		Categories: make(map[string]CategoryStats),
	}
	records := make(map[string][]inventory.DetailRecord)

	strat, sess, ok := c.connect(ctx, target, &tr)
	if !ok {
		return targetOutcome{report: tr, records: records}
	}

	entities, err := strat.ListEntities(ctx, sess)
	if err != nil {
		tr.Errors = append(tr.Errors, err)

		if len(entities) == 0 {
			// Nothing enumerable: fatal for this target.
			return targetOutcome{report: tr, records: records}
		}

		tr.Truncated = true
		logger.Warn().Str("target", target.Address).Int("entities", len(entities)).Err(err).Msg("listing truncated; continuing with partial fleet")
	}

	deduped := inventory.Dedupe(entities, func(e inventory.Entity) string { return e.Serial })
	tr.DuplicatesDropped = len(entities) - len(deduped)
	tr.EntityCount = len(deduped)

	var jobs []fetchJob

	for _, cat := range c.cats {
		spec, ok := strat.DetailSpec(cat.Name)
		if !ok {
			tr.SkippedCategories = append(tr.SkippedCategories, cat.Name)
			logger.Debug().Str("target", target.Address).Str("kind", tr.Kind.String()).Str("category", cat.Name).Msg("category not exposed by this console")

			continue
		}

		tr.Categories[cat.Name] = CategoryStats{}

		for _, entity := range deduped {
			jobs = append(jobs, fetchJob{entity: entity, category: cat, spec: spec})
		}
	}

	fetch := func(ctx context.Context, job fetchJob) (any, error) {
		return strat.FetchDetail(ctx, sess, job.entity, job.spec)
	}

	// handle runs on this goroutine, so report mutation needs no lock.
	handle := func(res fetchResult) {
		stats := tr.Categories[res.job.category.Name]

		if res.err != nil {
			stats.Failures++
			tr.Errors = append(tr.Errors, errFactory.Wrap(ErrDetailFetch, res.err).WithData(map[string]string{
				"entity":   res.job.entity.Name,
				"category": res.job.category.Name,
			}))
			logger.Warn().
				Str("target", target.Address).
				Str("entity", res.job.entity.Name).
				Str("category", res.job.category.Name).
				Err(res.err).
				Msg("detail fetch failed")
		} else {
			recs, errs := normalizer.Normalize(res.job.entity, res.job.category, res.job.spec.Mapping, res.payload)
			stats.Succeeded++
			stats.Records += len(recs)
			stats.Failures += len(errs)
			tr.Errors = append(tr.Errors, errs...)
			records[res.job.category.Name] = append(records[res.job.category.Name], recs...)
		}

		tr.Categories[res.job.category.Name] = stats
	}

	runFetches(ctx, jobs, c.cfg.FetchConcurrency, c.cfg.Retry, fetch, handle)

	logger.Info().
		Str("target", target.Address).
		Str("kind", tr.Kind.String()).
		Int("entities", tr.EntityCount).
		Int("duplicates", tr.DuplicatesDropped).
		Int("fetches", len(jobs)).
		Msg("target collected")

	return targetOutcome{report: tr, records: records}
}
