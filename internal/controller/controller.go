// Package controller drives the top-level epoch loop: plan, ambition
// gate, topological dispatch, drain completions, feedback, and
// stop-condition evaluation, grounded on the teacher's
// orchestrator.runLoop/scheduler.Schedule pair but restructured around
// explicit epochs instead of a single flat task queue.
package controller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shaycichocki/missionctl/internal/breaker"
	"github.com/shaycichocki/missionctl/internal/budget"
	"github.com/shaycichocki/missionctl/internal/classify"
	"github.com/shaycichocki/missionctl/internal/concurrency"
	"github.com/shaycichocki/missionctl/internal/diffreview"
	"github.com/shaycichocki/missionctl/internal/greenbranch"
	"github.com/shaycichocki/missionctl/internal/mergequeue"
	"github.com/shaycichocki/missionctl/internal/planner"
	"github.com/shaycichocki/missionctl/internal/store"
	"github.com/shaycichocki/missionctl/internal/worker"
	"github.com/shaycichocki/missionctl/internal/workspace"
	"github.com/shaycichocki/missionctl/pkg/models"
)

// Controller is the top-level epoch driver for one mission.
type Controller struct {
	cfg Config

	planner    planner.Planner
	backend    worker.Backend
	workspaces *workspace.Pool
	slots      *concurrency.ResizablePool
	breakers   *breaker.Set
	cost       *budget.Tracker
	queue      *mergequeue.Queue
	green      *greenbranch.Manager
	reviewer   *diffreview.Reviewer
	store      store.Store

	stop      *stopChecker
	log       zerolog.Logger
	changelog *Changelog
	metrics   *Metrics

	mergeHistory []mergedFiles

	verify func(ctx context.Context) (bool, error)
}

// New wires a Controller from its dependencies. reviewer may be nil, in
// which case promoted units are never scored. st may be nil, in which
// case epochs, work units, and reflections are not persisted at all; a
// real store.Store lets a mission's state survive the process and be
// replayed afterward.
func New(
	cfg Config,
	pl planner.Planner,
	backend worker.Backend,
	workspaces *workspace.Pool,
	breakers *breaker.Set,
	queue *mergequeue.Queue,
	green *greenbranch.Manager,
	reviewer *diffreview.Reviewer,
	st store.Store,
	log zerolog.Logger,
	metrics *Metrics,
) *Controller {
	return &Controller{
		cfg:        cfg,
		planner:    pl,
		backend:    backend,
		workspaces: workspaces,
		slots:      concurrency.NewResizablePool(cfg.MaxWorkers),
		breakers:   breakers,
		cost:       budget.New(),
		queue:      queue,
		green:      green,
		reviewer:   reviewer,
		store:      st,
		stop:       newStopChecker(cfg),
		log:        log,
		changelog:  NewChangelog(log),
		metrics:    metrics,
		verify:     func(ctx context.Context) (bool, error) { return false, nil },
	}
}

// SetVerify installs the objective verification check; its default is
// "never satisfied", appropriate when the mission has no automatic
// completion signal and relies on wall-time/cost/stall exits instead.
func (c *Controller) SetVerify(fn func(ctx context.Context) (bool, error)) {
	if fn != nil {
		c.verify = fn
	}
}

// Resize changes the live worker concurrency limit without the
// controller ever capturing a local copy of it, per spec.md §4.7's
// dynamic worker-count note.
func (c *Controller) Resize(maxWorkers int) {
	c.slots.Resize(maxWorkers)
}

// Run drives epochs until a stop condition fires and returns the final
// mission state.
func (c *Controller) Run(ctx context.Context, mission models.Mission) (models.Mission, error) {
	if err := c.green.Bootstrap(); err != nil {
		return mission, fmt.Errorf("bootstrap integration branches: %w", err)
	}

	deadline := mission.StartedAt.Add(c.cfg.MaxWallTime)
	epoch := 0

	for {
		epoch++

		wallExceeded := c.cfg.MaxWallTime > 0 && time.Now().After(deadline)
		objectiveMet, err := c.verify(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("objective verification check failed, treating as not met")
		}

		if reason, stop := c.stop.check(mission, wallExceeded, objectiveMet); stop {
			mission.Status = terminalStatus(reason)
			mission.StopReason = reason
			mission.UpdatedAt = time.Now()
			return mission, nil
		}

		allFailed, greenAdvanced, greenSHA, epochErr := c.runEpoch(ctx, &mission, epoch)
		if epochErr != nil {
			return mission, epochErr
		}

		c.stop.observeEpoch(allFailed, greenAdvanced, greenSHA)
		if c.metrics != nil {
			c.metrics.EpochsTotal.Inc()
			c.metrics.StallCount.Set(float64(c.stop.stallCount))
			c.metrics.EMACostUSD.Set(c.cost.EMA())
		}

		if allFailed && c.stop.shouldBackoff() {
			select {
			case <-ctx.Done():
				return mission, ctx.Err()
			case <-time.After(c.cfg.FailureBackoff):
			}
		}
	}
}

func terminalStatus(reason models.StopReason) models.MissionStatus {
	switch reason {
	case models.StopObjectiveMet:
		return models.MissionCompleted
	case models.StopOperatorRequest:
		return models.MissionStopped
	default:
		return models.MissionFailed
	}
}

// runEpoch plans, gates, dispatches, drains, and feeds back for a
// single epoch. It returns whether every unit in the epoch failed,
// whether mc/green advanced, and, if so, the worker branch ref of the
// last submission promoted in this epoch.
func (c *Controller) runEpoch(ctx context.Context, mission *models.Mission, ordinal int) (allFailed bool, greenAdvanced bool, greenSHA string, err error) {
	epoch := &models.Epoch{
		ID:        fmt.Sprintf("%s-e%d", mission.ID, ordinal),
		MissionID: mission.ID,
		Ordinal:   ordinal,
		StartedAt: time.Now(),
	}
	c.persistEpochStart(epoch)

	plan, err := c.planAndGate(ctx, *mission, ordinal)
	if err != nil {
		return false, false, "", err
	}

	plan.Units = c.applyStaleness(ctx, mission, ordinal, plan)
	if len(plan.Units) == 0 {
		c.finishEpoch(epoch, true, false, 0)
		return false, false, "", nil
	}

	for _, u := range plan.Units {
		epoch.PlannedUnitIDs = append(epoch.PlannedUnitIDs, u.ID)
		c.persistWorkUnit(u)
	}

	waves, err := buildDispatchWaves(plan.Units)
	if err != nil {
		// A cyclic plan is the Planner's fault, not ours; replan once more
		// and proceed with whatever comes back, or with nothing this epoch.
		c.log.Warn().Err(err).Msg("plan contained a dependency cycle, requesting replan")
		c.recordReflection(mission.ID, ordinal, err.Error())
		replanned, rerr := c.planner.Replan(ctx, *mission, err.Error(), c.cfg.MaxUnitsPerEpoch)
		if rerr != nil {
			return false, false, "", rerr
		}
		waves, err = buildDispatchWaves(replanned.Units)
		if err != nil {
			return false, false, "", nil
		}
	}

	total := 0
	succeeded := 0
	var lastPromotedSHA string

	for _, wave := range waves {
		results := c.dispatchWave(ctx, wave)
		for _, r := range results {
			total++
			mission.TotalCostUSD += r.costUSD
			epoch.DispatchedUnitIDs = append(epoch.DispatchedUnitIDs, r.outcome.UnitID)
			if r.outcome.Promoted {
				succeeded++
				if r.greenSHA != "" {
					lastPromotedSHA = r.greenSHA
				}
				c.recordMergedFiles(r.filesChanged)
				if c.metrics != nil {
					c.metrics.UnitsPromoted.Inc()
				}
			} else if r.outcome.NewState == models.UnitRejected {
				if c.metrics != nil {
					c.metrics.UnitsRejected.Inc()
				}
			} else if r.outcome.NewState == models.UnitRolledBack {
				if c.metrics != nil {
					c.metrics.UnitsRolledBack.Inc()
				}
			}
			if !r.outcome.Promoted {
				c.changelog.Record(ChangelogEntry{
					UnitID:    r.outcome.UnitID,
					Kind:      string(r.outcome.Kind),
					Summary:   r.outcome.Reason,
					Workspace: r.workspacePath,
				})
			}
			c.persistUnitOutcome(r)
			c.cost.Record(r.costUSD)
		}
	}

	allFailed = succeeded == 0 && total > 0
	c.finishEpoch(epoch, allFailed, lastPromotedSHA != "", mission.TotalCostUSD)
	return allFailed, lastPromotedSHA != "", lastPromotedSHA, nil
}

func (c *Controller) finishEpoch(epoch *models.Epoch, allFailed, greenAdvanced bool, costUSD float64) {
	now := time.Now()
	epoch.EndedAt = &now
	epoch.AllFailed = allFailed
	epoch.CostUSD = costUSD
	c.persistEpochEnd(epoch)
}

// persistUnitOutcome maps an epoch's per-unit outcome back onto the
// work_units table, so a replayed mission log sees the same terminal
// states this run produced.
func (c *Controller) persistUnitOutcome(r unitResult) {
	if c.store == nil || r.outcome.UnitID == "" {
		return
	}
	u, err := c.store.GetWorkUnit(r.outcome.UnitID)
	if err != nil {
		return
	}
	u.State = r.outcome.NewState
	u.LastFailureReason = r.outcome.Reason
	if r.outcome.Promoted {
		now := time.Now()
		u.CompletedAt = &now
	}
	if err := c.store.UpdateWorkUnit(u); err != nil {
		c.log.Warn().Err(err).Str("unit_id", u.ID).Msg("failed to persist work unit outcome")
	}
}

func (c *Controller) planAndGate(ctx context.Context, mission models.Mission, ordinal int) (planner.Plan, error) {
	plan, err := c.planner.Plan(ctx, mission, c.cfg.MaxUnitsPerEpoch)
	if err != nil {
		return planner.Plan{}, fmt.Errorf("plan: %w", err)
	}

	attempts := 0
	for plan.AmbitionScore < c.cfg.MinAmbitionScore && attempts < c.cfg.MaxReplanAttempts {
		attempts++
		c.recordReflection(mission.ID, ordinal, "ambition score below threshold")
		replanned, err := c.planner.Replan(ctx, mission, "ambition score below threshold", c.cfg.MaxUnitsPerEpoch)
		if err != nil {
			return planner.Plan{}, fmt.Errorf("replan: %w", err)
		}
		plan = replanned
	}
	return plan, nil
}

type unitResult struct {
	outcome       greenbranch.Outcome
	costUSD       float64
	greenSHA      string
	workspacePath string
	filesChanged  []string
}

// dispatchWave runs every unit in wave concurrently, each bound to a
// distinct workspace clone and a concurrency permit, submitting
// completed branches to the shared merge queue. Once every worker in
// the wave has either submitted or failed pre-merge, a single drain
// pass hands submissions to the GreenBranchManager in submission
// order: it is the exclusive writer to mc/working/mc/green, so merging
// never happens concurrently with itself even though workers do.
func (c *Controller) dispatchWave(ctx context.Context, wave []models.WorkUnit) []unitResult {
	if len(wave) == 0 {
		return nil
	}

	unitsByID := make(map[string]models.WorkUnit, len(wave))
	for _, u := range wave {
		unitsByID[u.ID] = u
	}

	g, gctx := errgroup.WithContext(ctx)
	preMerge := make([]unitResult, len(wave))
	var submitted atomic.Int64

	for i, unit := range wave {
		i, unit := i, unit
		g.Go(func() error {
			res, didSubmit, err := c.runWorker(gctx, unit)
			preMerge[i] = res
			if didSubmit {
				submitted.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Warn().Err(err).Msg("wave dispatch encountered an infrastructure error")
	}

	if submitted.Load() == 0 {
		return preMerge
	}

	drainCtx, cancel := context.WithTimeout(ctx, c.cfg.MergeDrainBudget)
	defer cancel()
	submissions, err := c.queue.Drain(drainCtx, int(submitted.Load()))
	if err != nil {
		c.log.Warn().Err(err).Msg("merge queue drain failed")
		return preMerge
	}

	results := make([]unitResult, 0, len(preMerge))
	merged := make(map[string]bool, len(submissions))
	for _, sub := range submissions {
		merged[sub.UnitID] = true
		unit := unitsByID[sub.UnitID]
		outcome, mergeErr := c.green.ProcessSubmission(ctx, sub, unit)
		if mergeErr != nil {
			c.log.Warn().Err(mergeErr).Str("unit_id", sub.UnitID).Msg("green branch manager returned an infrastructure error")
		}
		res := unitResult{outcome: outcome, costUSD: sub.Result.CostUSD}
		if outcome.Promoted {
			res.greenSHA = sub.WorkerBranchRef
			res.filesChanged = sub.Result.FilesChanged
			c.fireAndForgetReview(unit, sub.WorkerBranchRef)
		}
		results = append(results, res)
	}

	for _, r := range preMerge {
		if r.outcome.UnitID != "" && !merged[r.outcome.UnitID] {
			results = append(results, r)
		}
	}
	return results
}

// runWorker runs one unit's worker subprocess and submits its branch to
// the merge queue. It never touches mc/working or mc/green directly.
// The returned bool reports whether a submission actually reached the
// queue (false for pre-merge failures: breaker trip, no slot, no
// workspace, worker spawn failure, queue full).
func (c *Controller) runWorker(ctx context.Context, unit models.WorkUnit) (unitResult, bool, error) {
	allowed, record := c.breakers.Allow("worker")
	if !allowed {
		return unitResult{outcome: greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitRolledBack, Reason: "worker circuit breaker open", Kind: classify.Transient}}, false, nil
	}

	if err := c.slots.Acquire(ctx); err != nil {
		record(false)
		return unitResult{outcome: greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitPending, Reason: err.Error(), Kind: classify.Transient}}, false, nil
	}
	defer c.slots.Release()

	if c.metrics != nil {
		c.metrics.ActiveWorkers.Inc()
		defer c.metrics.ActiveWorkers.Dec()
	}

	handle, ok, err := c.workspaces.Acquire(ctx, "")
	if err != nil {
		record(false)
		return unitResult{outcome: greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitPending, Reason: err.Error(), Kind: classify.Transient}}, false, nil
	}
	if !ok {
		record(false)
		return unitResult{outcome: greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitPending, Reason: "no workspace available this epoch"}}, false, nil
	}
	defer c.workspaces.Release(handle, true)

	env, err := c.backend.Run(ctx, handle.Path, unit)
	if err != nil {
		record(false)
		return unitResult{outcome: greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitRolledBack, Reason: err.Error(), Kind: classify.Transient}, workspacePath: handle.Path}, false, nil
	}
	record(env.Succeeded())

	branchRef := env.MCResultFields["branch"]
	if branchRef == "" {
		branchRef = env.MCResultFields["ref"]
	}
	sub := models.MergeSubmission{UnitID: unit.ID, WorkerBranchRef: branchRef, Result: env, SubmittedAt: time.Now()}
	if err := c.queue.Submit(sub); err != nil {
		return unitResult{outcome: greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitPending, Reason: "merge queue full, retry next epoch"}, costUSD: env.CostUSD, workspacePath: handle.Path}, false, nil
	}

	return unitResult{
		outcome:       greenbranch.Outcome{UnitID: unit.ID, NewState: models.UnitDispatched, Reason: "submitted to merge queue"},
		costUSD:       env.CostUSD,
		workspacePath: handle.Path,
	}, true, nil
}

// fireAndForgetReview scores a promoted unit's diff asynchronously. Its
// result only ever feeds replanning hints; a slow or failing scorer
// must never delay the next dispatch wave.
func (c *Controller) fireAndForgetReview(unit models.WorkUnit, branchRef string) {
	if c.reviewer == nil {
		return
	}
	go func() {
		diff, err := c.green.DiffAgainstParent(branchRef)
		if err != nil {
			c.log.Debug().Err(err).Str("unit_id", unit.ID).Msg("diff review skipped, could not read diff")
			return
		}
		rec := c.reviewer.Review(context.Background(), unit.ID, unit.Description, diff)
		c.log.Debug().Str("unit_id", unit.ID).Bool("parsed", rec.Parsed).Msg("diff review completed")
	}()
}
