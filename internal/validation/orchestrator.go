// Package validation runs the full edge-validation pipeline over a hypothesis
// set and assembles the versioned result record.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/result"
	"edgeproof/domain/series"
	"edgeproof/domain/stats"
	"edgeproof/internal"
	"edgeproof/internal/breaks"
	"edgeproof/internal/capacity"
	"edgeproof/internal/dsr"
	"edgeproof/internal/fdr"
	"edgeproof/internal/metrics"
	"edgeproof/internal/pbo"
	"edgeproof/internal/realitycheck"
	"edgeproof/internal/seeding"
	"edgeproof/internal/trials"
	"edgeproof/ports"
)

// Request is the input of one run
type Request struct {
	// RunID is generated when empty
	RunID core.RunID
	Set   series.HypothesisSet
	// Primary defaults to the hypothesis with the highest observed Reality
	// Check statistic
	Primary core.HypothesisID
	// Turnover pairs with the primary's full return series for the capacity curve
	Turnover    []float64
	WalkForward []pbo.WalkForwardRow
	Config      Config
}

// Orchestrator sequences the components. It holds no per-run state and is
// safe for concurrent use.
type Orchestrator struct {
	cache    ports.ResultCache
	cacheTTL time.Duration
	seeds    ports.SeedStrategy
	metrics  *metrics.Recorder
	progress ports.ProgressSink
	logger   *internal.Logger
	now      func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCache enables Reality Check result caching
func WithCache(cache ports.ResultCache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.cache = cache
		o.cacheTTL = ttl
	}
}

// WithSeedStrategy overrides the strategy named in Config.SeedStrategy
func WithSeedStrategy(s ports.SeedStrategy) Option {
	return func(o *Orchestrator) { o.seeds = s }
}

// WithMetrics records instruments on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithProgress publishes a stage event to sink after each pipeline stage
func WithProgress(sink ports.ProgressSink) Option {
	return func(o *Orchestrator) { o.progress = sink }
}

// WithLogger replaces the default logger
func WithLogger(l *internal.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock fixes the record timestamp source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator without cache or metrics unless configured
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: internal.DefaultLogger.With("validation"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates req and returns the finished record. Statistically expected
// edge cases become skip reasons in the record; only malformed input and
// invalid configuration return an error. A timeout or cancellation during
// resampling yields a record with actual-vs-requested draw counts.
func (o *Orchestrator) Run(ctx context.Context, req Request) (result.Record, error) {
	start := time.Now()
	defer o.metrics.ObserveRun(start)

	cfg := req.Config.Normalized()
	if err := cfg.Validate(); err != nil {
		return result.Record{}, err
	}
	seeds := o.seeds
	if seeds == nil {
		var err error
		if seeds, err = seeding.ByName(cfg.SeedStrategy); err != nil {
			return result.Record{}, err
		}
	}
	statistic, err := realitycheck.StatisticByName(cfg.RCStatistic)
	if err != nil {
		return result.Record{}, err
	}

	runID := req.RunID
	if runID.IsEmpty() {
		runID = core.NewRunID()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout))
		defer cancel()
	}

	aligned, err := req.Set.Align()
	if err != nil {
		return result.Record{}, err
	}
	if req.Primary != "" {
		if _, ok := req.Set[req.Primary]; !ok {
			return result.Record{}, fmt.Errorf("%w: primary %s", core.ErrHypothesisAbsent, req.Primary)
		}
	}

	rec := result.Record{
		SchemaVersion:     result.SchemaVersion,
		RunID:             runID,
		InputFingerprint:  aligned.Fingerprint(core.NewFingerprinter("input")).Sum(),
		ConfigFingerprint: cfg.Fingerprint(),
		NHypotheses:       aligned.Width(),
		NPeriods:          aligned.Len(),
	}
	first, last := aligned.Index[0], aligned.Index[aligned.Len()-1]
	rec.PeriodStart, rec.PeriodEnd = &first, &last
	for _, id := range aligned.IDs {
		if dropped := aligned.Dropped[id]; dropped > 0 {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s: %d observations outside the common index", id, dropped))
		}
	}
	log := o.logger
	log.Info("run %s: %d hypotheses over %d aligned periods", runID, rec.NHypotheses, rec.NPeriods)
	o.publish(runID, "aligned", 0.05, map[string]interface{}{
		"n_hypotheses": rec.NHypotheses,
		"n_periods":    rec.NPeriods,
	})

	// per-series moments, HAC and break diagnostics
	analyses, err := NewConcurrentExecutor(cfg.Workers, cfg.HACLag, cfg.BreakAlpha).Analyze(req.Set, aligned.IDs)
	if err != nil {
		return result.Record{}, err
	}
	o.publish(runID, "series", 0.2, nil)

	// effective trials and deflation
	eff, err := trials.FromColumns(aligned.IDs, aligned.Columns, cfg.TrialsMinObs)
	if err != nil {
		return result.Record{}, err
	}
	rec.NTrialsEffSkippedReason = eff.SkippedReason
	if !eff.SkippedReason.Skipped() {
		rec.NTrialsEffEigen = result.Float(eff.NEff)
	}
	rec.NTrialsEffColumnsUsed = eff.NUsed
	rec.NTrialsEffDroppedIDs = eff.DroppedIDs
	o.metrics.Skip("n_trials_eff", eff.SkippedReason)

	nTrials, source := dsr.ResolveTrials(cfg.NTrials, eff, aligned.Width())
	rec.NTrialsUsed = result.Float(nTrials)
	rec.NTrialsSource = string(source)
	o.publish(runID, "trials", 0.3, map[string]interface{}{"n_trials": nTrials, "source": string(source)})

	// multiple testing over the per-series HAC p-values
	pvalues := make([]fdr.PValue, len(analyses))
	for i, a := range analyses {
		pvalues[i] = fdr.PValue{ID: a.ID, P: a.HAC.PValue}
		if a.HAC.Skipped() {
			pvalues[i].P = math.NaN()
		}
	}
	fdrRes, err := fdr.Adjust(pvalues, cfg.FDRMethod, cfg.Q)
	if err != nil {
		return result.Record{}, err
	}
	rec.FDR = result.FDRSummary{
		Method:        string(fdrRes.Method),
		Q:             fdrRes.Q,
		M:             fdrRes.M,
		Discoveries:   fdrRes.Discoveries(),
		Dropped:       fdrRes.Dropped,
		SkippedReason: fdrRes.SkippedReason,
	}
	if rec.FDR.Discoveries == nil {
		rec.FDR.Discoveries = []core.HypothesisID{}
	}
	o.metrics.Skip("fdr", fdrRes.SkippedReason)
	o.publish(runID, "fdr", 0.35, map[string]interface{}{"discoveries": len(rec.FDR.Discoveries)})

	// Reality Check and Romano-Wolf
	rcCfg := realitycheck.Config{
		Method:         cfg.RCMethod,
		AvgBlockLength: cfg.AvgBlockLength,
		BlockSize:      cfg.BlockSize,
		NSim:           cfg.NSim,
		Seed:           seeds.Seed(cfg.Seed, runID, seeding.SaltRealityCheck, seeding.NoFold),
		Recenter:       cfg.Recenter,
		RetainNull:     cfg.EnableRomanoWolf,
		Workers:        cfg.Workers,
		Statistic:      statistic,
	}
	rc, cacheHit, err := o.realityCheck(ctx, aligned, rcCfg, cfg.RCStatistic)
	if err != nil {
		return result.Record{}, err
	}
	applyRealityCheck(&rec, rc, cfg, cacheHit)
	if rc.Shortfall {
		log.Warn("run %s: reality check completed %d of %d draws", runID, rc.ActualNSim, rc.RequestedNSim)
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("reality check completed %d of %d draws", rc.ActualNSim, rc.RequestedNSim))
	}

	var rw realitycheck.StepdownResult
	if cfg.EnableRomanoWolf {
		rw = realitycheck.RomanoWolf(rc)
		adjusted := result.PValueMap(rw.AdjustedP)
		rec.RWAdjustedPValues = &adjusted
		rec.RWRejected = rw.Rejected(cfg.Alpha)
		rec.RWSkippedReason = rw.SkippedReason
		o.metrics.Skip("romano_wolf", rw.SkippedReason)
	} else {
		rec.RWSkippedReason = stats.SkipDisabled
	}

	o.publish(runID, "reality_check", 0.7, map[string]interface{}{
		"actual_n_sim": rc.ActualNSim,
		"cache_hit":    cacheHit,
	})

	primary := req.Primary
	if primary == "" {
		primary = rc.Best
	}
	if primary == "" {
		primary = aligned.IDs[0]
	}
	rec.Primary = primary

	// overfitting
	cscvSeed := seeds.Seed(cfg.Seed, runID, seeding.SaltCSCV, seeding.NoFold)
	cscv, err := pbo.CSCV(ctx, aligned.Rows(), pbo.CSCVConfig{
		Splits:    cfg.CSCVSplits,
		MaxSplits: cfg.CSCVMaxSplits,
		Seed:      cscvSeed,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return result.Record{}, err
	}
	applyCSCV(&rec, cscv, cfg.CSCVSplits, cscvSeed)
	o.metrics.Skip("pbo_cscv", cscv.SkippedReason)
	if cscv.RequestedSplits > 0 {
		shortfall := cscv.NSplits < cscv.RequestedSplits
		o.metrics.Draws(seeding.SaltCSCV, cscv.RequestedSplits, cscv.NSplits, shortfall)
		if shortfall {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("cscv completed %d of %d splits", cscv.NSplits, cscv.RequestedSplits))
		}
	}

	o.publish(runID, "cscv", 0.85, map[string]interface{}{"n_splits": cscv.NSplits})

	if req.WalkForward == nil {
		rec.PBOWalkForwardSkippedReason = stats.SkipWalkForwardAbsent
	} else {
		wf := pbo.WalkForward(req.WalkForward)
		rec.PBOWalkForwardSkippedReason = wf.SkippedReason
		if !wf.SkippedReason.Skipped() {
			rec.PBOWalkForward = result.Float(wf.PBO)
		}
		o.metrics.Skip("pbo_walk_forward", wf.SkippedReason)
	}

	// capacity of the primary
	curve, err := capacity.Build(req.Set[primary].Values(), req.Turnover, capacity.Config{
		Multipliers:         cfg.Capacity.Multipliers,
		Costs:               cfg.Capacity.Costs,
		ParticipationImpact: cfg.Capacity.ParticipationImpact,
		PeriodsPerYear:      cfg.PeriodsPerYear,
	})
	if err != nil {
		return result.Record{}, err
	}
	rec.Capacity = capacityTable(primary, curve)
	o.metrics.Skip("capacity", curve.SkippedReason)
	o.publish(runID, "capacity", 0.95, nil)

	// per-hypothesis entries and the primary's headline numbers
	rec.Hypotheses = make([]result.HypothesisEntry, len(analyses))
	for i, a := range analyses {
		deflated := dsr.Compute(a.Moments, nTrials)
		entry := hypothesisEntry(a, deflated)
		if adj, ok := fdrRes.Entries[a.ID]; ok {
			entry.FDRAdjustedP = result.Float(adj.AdjustedP)
			entry.IsDiscovery = adj.IsDiscovery
		}
		if v, ok := rc.ObservedFor(a.ID); ok {
			entry.RCObserved = result.Float(v)
		}
		if p, ok := rw.AdjustedP[a.ID]; ok {
			entry.RWAdjusted = result.Float(p)
		}
		rec.Hypotheses[i] = entry

		o.metrics.Skip("moments", a.Moments.SkippedReason)
		o.metrics.Skip("deflated_sr", deflated.SkippedReason)
		o.metrics.Skip("hac", a.HAC.SkippedReason)
		o.metrics.Skip("cusum", a.CUSUM.SkippedReason)
		o.metrics.Skip("sup_chow", a.SupChow.SkippedReason)

		if a.ID == primary {
			applyPrimary(&rec, entry, a)
		}
	}

	rec.CreatedAt = o.now().UTC()
	for field, reason := range rec.Skips() {
		log.Debug("run %s: %s skipped: %s", runID, field, reason)
	}
	log.Info("run %s finished in %s", runID, time.Since(start).Round(time.Millisecond))
	o.publish(runID, ports.StageCompleted, 1, map[string]interface{}{"primary": string(primary)})
	return rec, nil
}

func (o *Orchestrator) publish(runID core.RunID, stage string, progress float64, data map[string]interface{}) {
	if o.progress == nil {
		return
	}
	o.progress.Publish(ports.ProgressEvent{
		RunID:     runID,
		Stage:     stage,
		Progress:  progress,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// realityCheck consults the cache before running the bootstrap. Cached
// results carry no null matrix. Only complete runs are cached.
func (o *Orchestrator) realityCheck(ctx context.Context, aligned *series.AlignedSet, cfg realitycheck.Config, statistic string) (realitycheck.Result, bool, error) {
	key := realityCheckKey(aligned, cfg, statistic)

	if o.cache != nil {
		raw, found, err := o.cache.Get(ctx, key)
		switch {
		case err != nil:
			o.metrics.Cache("error")
			o.logger.Warn("reality check cache lookup failed: %v", err)
		case found:
			var snap realitycheck.Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				o.metrics.Cache("hit")
				return snap.Result(), true, nil
			}
			o.metrics.Cache("error")
			o.logger.Warn("discarding undecodable cache entry %s", key)
		default:
			o.metrics.Cache("miss")
		}
	}

	rc, err := realitycheck.Run(ctx, aligned, cfg)
	if err != nil {
		return realitycheck.Result{}, false, err
	}
	o.metrics.Draws(seeding.SaltRealityCheck, rc.RequestedNSim, rc.ActualNSim, rc.Shortfall)
	o.metrics.Skip("reality_check", rc.SkippedReason)

	if o.cache != nil && rc.ActualNSim == rc.RequestedNSim && !rc.Skipped() {
		raw, err := json.Marshal(rc.Snapshot())
		if err == nil {
			err = o.cache.Set(ctx, key, raw, o.cacheTTL)
		}
		if err != nil {
			o.logger.Warn("reality check cache store failed: %v", err)
		}
	}
	return rc, false, nil
}

func realityCheckKey(aligned *series.AlignedSet, cfg realitycheck.Config, statistic string) core.Hash {
	f := aligned.Fingerprint(core.NewFingerprinter("rc"))
	f.String(string(cfg.Method)).Float(cfg.AvgBlockLength).Int(int64(cfg.BlockSize)).
		Int(int64(cfg.NSim)).Int(cfg.Seed).Bool(cfg.Recenter).String(statistic)
	return f.Sum()
}

func applyRealityCheck(rec *result.Record, rc realitycheck.Result, cfg Config, cacheHit bool) {
	rec.RCSkippedReason = rc.SkippedReason
	if !rc.Skipped() {
		rec.RCPValue = result.Float(rc.PValue)
	}
	rec.RealityCheck = &result.RealityCheckDetail{
		Statistic:     cfg.RCStatistic,
		Method:        string(rc.Method),
		BlockParam:    rc.BlockParam,
		Seed:          rc.Seed,
		Recentered:    rc.Recentered,
		RequestedNSim: rc.RequestedNSim,
		ActualNSim:    rc.ActualNSim,
		Shortfall:     rc.Shortfall,
		ObservedMax:   result.Float(rc.ObservedMax),
		Best:          rc.Best,
		CacheHit:      cacheHit,
		Alpha:         cfg.Alpha,
		Significant:   !rc.Skipped() && rc.PValue <= cfg.Alpha,
	}
}

func applyCSCV(rec *result.Record, cscv pbo.CSCVResult, splits int, seed int64) {
	rec.PBOCSCVSkippedReason = cscv.SkippedReason
	if cscv.Skipped() {
		return
	}
	rec.PBOCSCV = result.Float(cscv.PBO)
	rec.CSCV = &result.CSCVDetail{
		Splits:          splits,
		NSplits:         cscv.NSplits,
		RequestedSplits: cscv.RequestedSplits,
		NPossibleSplits: cscv.NPossibleSplits,
		DroppedPeriods:  cscv.DroppedPeriods,
		MedianLogit:     cscv.MedianLogit,
		Seed:            seed,
	}
}

func capacityTable(primary core.HypothesisID, curve capacity.Curve) result.CapacityTable {
	table := result.CapacityTable{
		Series:                   primary,
		Columns:                  curve.Columns,
		Rows:                     make([][]float64, len(curve.Rows)),
		SharpeStrictlyIncreasing: curve.SharpeStrictlyIncreasing,
		SkippedReason:            curve.SkippedReason,
	}
	for i, row := range curve.Rows {
		table.Rows[i] = row.Values()
	}
	return table
}

func hypothesisEntry(a SeriesAnalysis, deflated dsr.Result) result.HypothesisEntry {
	m := a.Moments
	entry := result.HypothesisEntry{
		ID:                      a.ID,
		N:                       m.N,
		NTotal:                  m.NTotal,
		NNaN:                    m.NNaN,
		MomentsSkipReason:       m.SkippedReason,
		DeflatedSRSkippedReason: deflated.SkippedReason,
		HACSkippedReason:        a.HAC.SkippedReason,
		Breaks:                  []result.BreakDiagnostic{breakDiagnostic(a.CUSUM), breakDiagnostic(a.SupChow)},
	}
	if m.N >= 2 {
		entry.Mean = result.Float(m.Mean)
		entry.Variance = result.Float(m.Variance)
	}
	if !m.Skipped() {
		entry.RawSR = result.Float(m.RawSR)
		entry.Skew = result.Float(m.Skew)
		entry.Kurtosis = result.Float(m.Kurtosis)
	}
	if !deflated.Skipped() {
		entry.DeflatedSR = result.Float(deflated.DSR)
	}
	if !a.HAC.Skipped() {
		entry.THAC = result.Float(a.HAC.TStat)
		entry.PHAC = result.Float(a.HAC.PValue)
	}
	return entry
}

func breakDiagnostic(b breaks.Result) result.BreakDiagnostic {
	d := result.BreakDiagnostic{
		TestName:          b.TestName,
		CalibrationMethod: b.CalibrationMethod,
		SkippedReason:     b.SkippedReason,
	}
	if b.Skipped() {
		return d
	}
	d.Stat = result.Float(b.Stat)
	d.PValue = result.Float(b.PValue)
	d.BreakSuspected = b.BreakSuspected
	d.EstimatedBreakIndex = result.Int(b.EstimatedBreakIndex)
	d.EstimatedBreakDate = b.EstimatedBreakDate
	return d
}

func applyPrimary(rec *result.Record, entry result.HypothesisEntry, a SeriesAnalysis) {
	rec.RawSR = entry.RawSR
	rec.RawSRSkippedReason = entry.MomentsSkipReason
	rec.DeflatedSR = entry.DeflatedSR
	rec.DeflatedSRSkippedReason = entry.DeflatedSRSkippedReason
	rec.THACMean = entry.THAC
	rec.PHACMean = entry.PHAC
	rec.HACSkippedReason = a.HAC.SkippedReason
	if !a.HAC.Skipped() {
		rec.HACLag = result.Int(a.HAC.Lag)
	}
}
