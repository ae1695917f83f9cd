package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Target.Branch != "main" {
		t.Errorf("expected default branch 'main', got %q", cfg.Target.Branch)
	}
	if cfg.Scheduler.ParallelNumWorkers != 3 {
		t.Errorf("expected default parallel_num_workers 3, got %d", cfg.Scheduler.ParallelNumWorkers)
	}
	if cfg.Scheduler.SessionTimeout != 15*time.Minute {
		t.Errorf("expected session timeout 15m, got %v", cfg.Scheduler.SessionTimeout)
	}
	if cfg.Continuous.MaxWallTimeSeconds != 7200 {
		t.Errorf("expected default max_wall_time_seconds 7200, got %d", cfg.Continuous.MaxWallTimeSeconds)
	}
	if cfg.GreenBranch.AutoPushPolicy != "abort" {
		t.Errorf("expected default auto_push_policy 'abort', got %q", cfg.GreenBranch.AutoPushPolicy)
	}
	if !cfg.Continuous.VerifyBeforeMerge {
		t.Error("expected verify_before_merge to default true")
	}
	if cfg.Degradation.MinWorkersFloor != 1 {
		t.Errorf("expected min_workers_floor 1, got %d", cfg.Degradation.MinWorkersFloor)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
target:
  path: /repo
  branch: develop
  verification_command: "go test ./..."
scheduler:
  parallel_num_workers: 5
  budget_max_per_run_usd: 100
continuous:
  max_wall_time_seconds: 3600
  min_ambition_score: 0.7
green_branch:
  auto_push: true
  auto_push_policy: on_success
review:
  gate_completion: true
  min_review_score: 8
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Target.Branch != "develop" {
		t.Errorf("expected branch 'develop', got %q", cfg.Target.Branch)
	}
	if cfg.Scheduler.ParallelNumWorkers != 5 {
		t.Errorf("expected parallel_num_workers 5, got %d", cfg.Scheduler.ParallelNumWorkers)
	}
	if cfg.Scheduler.BudgetMaxPerRunUSD != 100 {
		t.Errorf("expected budget_max_per_run_usd 100, got %v", cfg.Scheduler.BudgetMaxPerRunUSD)
	}
	if cfg.Continuous.MaxWallTimeSeconds != 3600 {
		t.Errorf("expected max_wall_time_seconds 3600, got %d", cfg.Continuous.MaxWallTimeSeconds)
	}
	if !cfg.GreenBranch.AutoPush {
		t.Error("expected auto_push to be true")
	}
	if cfg.GreenBranch.AutoPushPolicy != "on_success" {
		t.Errorf("expected auto_push_policy 'on_success', got %q", cfg.GreenBranch.AutoPushPolicy)
	}
	if !cfg.Review.GateCompletion {
		t.Error("expected gate_completion to be true")
	}
	if cfg.Review.MinReviewScore != 8 {
		t.Errorf("expected min_review_score 8, got %d", cfg.Review.MinReviewScore)
	}
}

func TestLoadFromPathAppliesDefaultsForOmittedKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("target:\n  path: /repo\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Scheduler.ParallelNumWorkers != 3 {
		t.Errorf("expected untouched key to fall back to default 3, got %d", cfg.Scheduler.ParallelNumWorkers)
	}
	if cfg.Rounds.StallThreshold != 3 {
		t.Errorf("expected stall_threshold default 3, got %d", cfg.Rounds.StallThreshold)
	}
}

func TestUserConfigDirHonorsXDG(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := userConfigDir()
	expected := "/custom/config/missionctl"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestFindProjectConfigWalksUpToAncestor(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	marker := filepath.Join(root, "a", ".missionctl.yaml")
	if err := os.WriteFile(marker, []byte("target:\n  branch: main\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWD)
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	got := findProjectConfig()
	if got != marker {
		t.Errorf("expected %q, got %q", marker, got)
	}
}

func TestFindProjectConfigReturnsEmptyWhenAbsent(t *testing.T) {
	root := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWD)
	if err := os.Chdir(root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	if got := findProjectConfig(); got != "" {
		t.Errorf("expected no project config found, got %q", got)
	}
}

func TestSaveRoundTripsThroughUserConfigDir(t *testing.T) {
	tmpHome := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmpHome)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	cfg := Default()
	cfg.Target.Branch = "release"
	cfg.Scheduler.ParallelNumWorkers = 7

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if reloaded.Target.Branch != "release" {
		t.Errorf("expected branch 'release', got %q", reloaded.Target.Branch)
	}
	if reloaded.Scheduler.ParallelNumWorkers != 7 {
		t.Errorf("expected parallel_num_workers 7, got %d", reloaded.Scheduler.ParallelNumWorkers)
	}
}
