package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shaycichocki/missionctl/internal/breaker"
	"github.com/shaycichocki/missionctl/internal/config"
	"github.com/shaycichocki/missionctl/internal/controller"
	"github.com/shaycichocki/missionctl/internal/diffreview"
	"github.com/shaycichocki/missionctl/internal/git"
	"github.com/shaycichocki/missionctl/internal/greenbranch"
	"github.com/shaycichocki/missionctl/internal/mergequeue"
	"github.com/shaycichocki/missionctl/internal/planner"
	"github.com/shaycichocki/missionctl/internal/store"
	"github.com/shaycichocki/missionctl/internal/worker"
	"github.com/shaycichocki/missionctl/internal/workspace"
	"github.com/shaycichocki/missionctl/pkg/models"
)

var (
	runObjective   string
	runBacklog     string
	runConfigPath  string
	runWorkerCmd   string
	runReviewCmd   string
	runBudgetUSD   float64
	runPushRemote  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mission against the current target repository",
	Long: `Run plans, dispatches, and merges work units against the target
repository's mc/working and mc/green branches until the objective is
met or a stop condition fires.

The backlog of candidate work units is read from --backlog as a JSON
file (see internal/planner.LoadStaticPlanner for the shape); the real
strategist that produces this file is external to missionctl.`,
	RunE: runMission,
}

func init() {
	runCmd.Flags().StringVar(&runObjective, "objective", "", "Free-text description of the mission's goal")
	runCmd.Flags().StringVar(&runBacklog, "backlog", "", "Path to a JSON backlog file of candidate work units (required)")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to a config file; defaults to the standard XDG/project discovery chain")
	runCmd.Flags().StringVar(&runWorkerCmd, "worker-cmd", "", "Command to invoke per work unit (overrides config)")
	runCmd.Flags().StringVar(&runReviewCmd, "review-cmd", "", "Command to invoke for diff review scoring; empty disables review")
	runCmd.Flags().Float64Var(&runBudgetUSD, "budget-usd", 0, "Cost budget for the mission; 0 means no cost-based stop")
	runCmd.Flags().StringVar(&runPushRemote, "push-remote", "", "Remote to push mc/green to when auto_push is enabled")
	runCmd.MarkFlagRequired("backlog")
}

func runMission(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repoPath := cfg.Target.Path
	if repoPath == "" {
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn().Msg("received interrupt, requesting graceful shutdown")
		cancel()
	}()

	pl, err := planner.LoadStaticPlanner(runBacklog)
	if err != nil {
		return fmt.Errorf("load backlog: %w", err)
	}

	workerCmd := runWorkerCmd
	if workerCmd == "" {
		workerCmd = "missionctl-worker"
	}
	backend := &worker.LocalSubprocessBackend{
		Command: workerCmd,
		Args:    []string{"{description}"},
		Timeout: cfg.Scheduler.SessionTimeout,
	}

	baseDir := filepath.Join(os.TempDir(), "missionctl-workspaces")
	pool, err := workspace.New(repoPath, baseDir, cfg.Scheduler.ParallelNumWorkers)
	if err != nil {
		return fmt.Errorf("create workspace pool: %w", err)
	}

	missionID := uuid.New().String()
	repo := git.NewRunner(repoPath)

	greenCfg := greenbranch.DefaultConfig()
	greenCfg.VerifyCommand = cfg.Target.VerificationCommand
	greenCfg.VerifyTimeout = cfg.Target.VerificationTimeout
	greenCfg.AutoPush = cfg.GreenBranch.AutoPush
	greenCfg.AutoPushPolicy = cfg.GreenBranch.AutoPushPolicy
	greenCfg.FixupMaxAttempts = cfg.GreenBranch.FixupMaxAttempts
	greenCfg.FixupCandidates = cfg.GreenBranch.FixupCandidates
	greenCfg.SkipReviewOnPass = cfg.Review.SkipWhenCriteriaPassed
	if runPushRemote != "" {
		greenCfg.PushRemote = runPushRemote
	} else {
		greenCfg.PushRemote = cfg.GreenBranch.PushRemote
	}
	greenCfg.PushBranch = cfg.GreenBranch.PushBranch
	fixup := &greenbranch.WorkerFixup{Backend: backend, Workspaces: pool, BaseRef: greenbranch.WorkingBranch}
	green := greenbranch.New(missionID, repo, greenCfg, fixup)

	var reviewer *diffreview.Reviewer
	if runReviewCmd != "" {
		reviewer = diffreview.New(&subprocessScorer{command: runReviewCmd}, logger)
	}

	ctrlCfg := controller.DefaultConfig()
	ctrlCfg.MaxWorkers = cfg.Scheduler.ParallelNumWorkers
	ctrlCfg.MinAmbitionScore = cfg.Continuous.MinAmbitionScore
	ctrlCfg.MaxReplanAttempts = cfg.Continuous.MaxReplanAttempts
	ctrlCfg.MaxWallTime = time.Duration(cfg.Continuous.MaxWallTimeSeconds) * time.Second
	ctrlCfg.StallThreshold = cfg.Rounds.StallThreshold
	ctrlCfg.MaxConsecutiveFailures = cfg.Continuous.MaxConsecutiveFailures
	ctrlCfg.FailureBackoff = time.Duration(cfg.Continuous.FailureBackoffSeconds) * time.Second
	ctrlCfg.BacklogMaxAge = time.Duration(cfg.Continuous.BacklogMaxAgeSeconds) * time.Second
	ctrlCfg.VerifyBeforeMerge = cfg.Continuous.VerifyBeforeMerge

	dbPath := store.DefaultPath(repoPath)
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	c := controller.New(
		ctrlCfg,
		pl,
		backend,
		pool,
		breaker.NewSet(breaker.DefaultConfig()),
		mergequeue.New(32),
		green,
		reviewer,
		db,
		logger,
		nil,
	)

	mission := models.Mission{
		ID:                  missionID,
		Objective:           runObjective,
		VerificationCommand: cfg.Target.VerificationCommand,
		BudgetUSD:           runBudgetUSD,
		WallTimeBudget:      ctrlCfg.MaxWallTime,
		StartedAt:           time.Now(),
		UpdatedAt:           time.Now(),
		Status:              models.MissionRunning,
	}
	if err := db.CreateMission(&mission); err != nil {
		return fmt.Errorf("persist mission: %w", err)
	}

	result, err := c.Run(ctx, mission)
	if err != nil {
		return fmt.Errorf("run mission: %w", err)
	}
	result.UpdatedAt = time.Now()
	if err := db.UpdateMission(&result); err != nil {
		logger.Warn().Err(err).Msg("failed to persist final mission state")
	}

	logger.Info().
		Str("mission_id", result.ID).
		Str("status", string(result.Status)).
		Str("stop_reason", string(result.StopReason)).
		Float64("total_cost_usd", result.TotalCostUSD).
		Msg("mission finished")

	return &missionExitError{reason: result.StopReason}
}

func loadRunConfig() (*config.Config, error) {
	if runConfigPath != "" {
		return config.LoadFromPath(runConfigPath)
	}
	return config.Load()
}
