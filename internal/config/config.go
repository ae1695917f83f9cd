// Package config loads missionctl's configuration from XDG user
// config, a project-level override file, and environment variables,
// grounded on the teacher's internal/config/config.go precedence chain
// (env > project > user > built-in defaults) and viper/mapstructure
// usage, retargeted at spec.md §6's recognised options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognised missionctl option.
type Config struct {
	Target      TargetConfig      `mapstructure:"target"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Rounds      RoundsConfig      `mapstructure:"rounds"`
	Continuous  ContinuousConfig  `mapstructure:"continuous"`
	GreenBranch GreenBranchConfig `mapstructure:"green_branch"`
	Review      ReviewConfig      `mapstructure:"review"`
	Degradation DegradationConfig `mapstructure:"degradation"`
}

// TargetConfig names the repository and verification gate a mission runs against.
type TargetConfig struct {
	Path                string        `mapstructure:"path"`
	Branch              string        `mapstructure:"branch"`
	VerificationCommand string        `mapstructure:"verification_command"`
	VerificationTimeout time.Duration `mapstructure:"verification_timeout"`
}

// SchedulerConfig controls worker parallelism and per-unit budgets.
type SchedulerConfig struct {
	ParallelNumWorkers     int           `mapstructure:"parallel_num_workers"`
	ParallelPoolDir        string        `mapstructure:"parallel_pool_dir"`
	SessionTimeout         time.Duration `mapstructure:"session_timeout"`
	BudgetMaxPerSessionUSD float64       `mapstructure:"budget_max_per_session_usd"`
	BudgetMaxPerRunUSD     float64       `mapstructure:"budget_max_per_run_usd"`
}

// RoundsConfig bounds how long a mission may iterate without promoting.
type RoundsConfig struct {
	MaxRounds      int `mapstructure:"max_rounds"`
	StallThreshold int `mapstructure:"stall_threshold"`
}

// ContinuousConfig controls the ContinuousController's epoch loop.
type ContinuousConfig struct {
	MaxWallTimeSeconds     int     `mapstructure:"max_wall_time_seconds"`
	MinAmbitionScore       float64 `mapstructure:"min_ambition_score"`
	MaxReplanAttempts      int     `mapstructure:"max_replan_attempts"`
	VerifyBeforeMerge      bool    `mapstructure:"verify_before_merge"`
	BacklogMaxAgeSeconds   int     `mapstructure:"backlog_max_age_seconds"`
	MaxConsecutiveFailures int     `mapstructure:"max_consecutive_failures"`
	FailureBackoffSeconds  int     `mapstructure:"failure_backoff_seconds"`
}

// GreenBranchConfig controls the GreenBranchManager's merge pipeline.
type GreenBranchConfig struct {
	AutoPush         bool   `mapstructure:"auto_push"`
	AutoPushPolicy   string `mapstructure:"auto_push_policy"`
	PushRemote       string `mapstructure:"push_remote"`
	PushBranch       string `mapstructure:"push_branch"`
	FixupMaxAttempts int    `mapstructure:"fixup_max_attempts"`
	FixupCandidates  int    `mapstructure:"fixup_candidates"`
}

// ReviewConfig controls the DiffReviewer's gating behavior.
type ReviewConfig struct {
	GateCompletion         bool `mapstructure:"gate_completion"`
	MinReviewScore         int  `mapstructure:"min_review_score"`
	SkipWhenCriteriaPassed bool `mapstructure:"skip_when_criteria_passed"`
}

// DegradationConfig controls how the controller responds to sustained
// per-component circuit-breaker trips (spec.md §9's degradation note).
type DegradationConfig struct {
	ReduceWorkersOnOpenBreaker bool `mapstructure:"reduce_workers_on_open_breaker"`
	MinWorkersFloor            int `mapstructure:"min_workers_floor"`
}

// Load reads configuration from XDG user config, a project-level
// .missionctl.yaml override found by walking up from the working
// directory, and environment variables, in that ascending precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userDir := userConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectPath := findProjectConfig(); projectPath != "" {
		pv := viper.New()
		pv.SetConfigFile(projectPath)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("missionctl")
	v.BindEnv("target.verification_command", "MISSIONCTL_VERIFICATION_COMMAND")
	v.BindEnv("green_branch.push_remote", "MISSIONCTL_PUSH_REMOTE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a single file, bypassing the
// XDG/project discovery chain. Primarily for tests and explicit --config flags.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the user config file, creating its directory if needed.
func Save(cfg *Config) error {
	dir := userConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))

	v.Set("target.path", cfg.Target.Path)
	v.Set("target.branch", cfg.Target.Branch)
	v.Set("target.verification_command", cfg.Target.VerificationCommand)
	v.Set("target.verification_timeout", cfg.Target.VerificationTimeout.String())
	v.Set("scheduler.parallel_num_workers", cfg.Scheduler.ParallelNumWorkers)
	v.Set("scheduler.session_timeout", cfg.Scheduler.SessionTimeout.String())
	v.Set("scheduler.budget_max_per_session_usd", cfg.Scheduler.BudgetMaxPerSessionUSD)
	v.Set("scheduler.budget_max_per_run_usd", cfg.Scheduler.BudgetMaxPerRunUSD)
	v.Set("rounds.max_rounds", cfg.Rounds.MaxRounds)
	v.Set("rounds.stall_threshold", cfg.Rounds.StallThreshold)
	v.Set("continuous.max_wall_time_seconds", cfg.Continuous.MaxWallTimeSeconds)
	v.Set("continuous.min_ambition_score", cfg.Continuous.MinAmbitionScore)
	v.Set("continuous.max_replan_attempts", cfg.Continuous.MaxReplanAttempts)
	v.Set("continuous.verify_before_merge", cfg.Continuous.VerifyBeforeMerge)
	v.Set("continuous.backlog_max_age_seconds", cfg.Continuous.BacklogMaxAgeSeconds)
	v.Set("continuous.max_consecutive_failures", cfg.Continuous.MaxConsecutiveFailures)
	v.Set("continuous.failure_backoff_seconds", cfg.Continuous.FailureBackoffSeconds)
	v.Set("green_branch.auto_push", cfg.GreenBranch.AutoPush)
	v.Set("green_branch.auto_push_policy", cfg.GreenBranch.AutoPushPolicy)
	v.Set("green_branch.push_remote", cfg.GreenBranch.PushRemote)
	v.Set("green_branch.push_branch", cfg.GreenBranch.PushBranch)
	v.Set("green_branch.fixup_max_attempts", cfg.GreenBranch.FixupMaxAttempts)
	v.Set("green_branch.fixup_candidates", cfg.GreenBranch.FixupCandidates)
	v.Set("review.gate_completion", cfg.Review.GateCompletion)
	v.Set("review.min_review_score", cfg.Review.MinReviewScore)
	v.Set("review.skip_when_criteria_passed", cfg.Review.SkipWhenCriteriaPassed)
	v.Set("degradation.reduce_workers_on_open_breaker", cfg.Degradation.ReduceWorkersOnOpenBreaker)
	v.Set("degradation.min_workers_floor", cfg.Degradation.MinWorkersFloor)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config override, if any.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.branch", "main")
	v.SetDefault("target.verification_timeout", "5m")

	v.SetDefault("scheduler.parallel_num_workers", 3)
	v.SetDefault("scheduler.session_timeout", "15m")
	v.SetDefault("scheduler.budget_max_per_session_usd", 5.0)
	v.SetDefault("scheduler.budget_max_per_run_usd", 50.0)

	v.SetDefault("rounds.max_rounds", 0)
	v.SetDefault("rounds.stall_threshold", 3)

	v.SetDefault("continuous.max_wall_time_seconds", 7200)
	v.SetDefault("continuous.min_ambition_score", 0.5)
	v.SetDefault("continuous.max_replan_attempts", 2)
	v.SetDefault("continuous.verify_before_merge", true)
	v.SetDefault("continuous.backlog_max_age_seconds", 600)
	v.SetDefault("continuous.max_consecutive_failures", 3)
	v.SetDefault("continuous.failure_backoff_seconds", 30)

	v.SetDefault("green_branch.auto_push", false)
	v.SetDefault("green_branch.auto_push_policy", "abort")
	v.SetDefault("green_branch.fixup_max_attempts", 2)
	v.SetDefault("green_branch.fixup_candidates", 3)

	v.SetDefault("review.gate_completion", false)
	v.SetDefault("review.min_review_score", 6)
	v.SetDefault("review.skip_when_criteria_passed", false)

	v.SetDefault("degradation.reduce_workers_on_open_breaker", true)
	v.SetDefault("degradation.min_workers_floor", 1)
}

// userConfigDir returns the XDG config directory for missionctl.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "missionctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "missionctl")
	}
	return filepath.Join(home, ".config", "missionctl")
}

// findProjectConfig searches for .missionctl.yaml in the working
// directory and its parents, same walk-up the teacher uses for .alphie.yaml.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(cwd, ".missionctl.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// Default returns a Config populated with built-in defaults, useful
// for tests and as a starting point for Save.
func Default() *Config {
	return &Config{
		Target: TargetConfig{Branch: "main", VerificationTimeout: 5 * time.Minute},
		Scheduler: SchedulerConfig{
			ParallelNumWorkers:     3,
			SessionTimeout:         15 * time.Minute,
			BudgetMaxPerSessionUSD: 5.0,
			BudgetMaxPerRunUSD:     50.0,
		},
		Rounds: RoundsConfig{StallThreshold: 3},
		Continuous: ContinuousConfig{
			MaxWallTimeSeconds:     7200,
			MinAmbitionScore:       0.5,
			MaxReplanAttempts:      2,
			VerifyBeforeMerge:      true,
			BacklogMaxAgeSeconds:   600,
			MaxConsecutiveFailures: 3,
			FailureBackoffSeconds:  30,
		},
		GreenBranch: GreenBranchConfig{
			AutoPushPolicy:   "abort",
			FixupMaxAttempts: 2,
			FixupCandidates:  3,
		},
		Review:      ReviewConfig{MinReviewScore: 6},
		Degradation: DegradationConfig{ReduceWorkersOnOpenBreaker: true, MinWorkersFloor: 1},
	}
}
