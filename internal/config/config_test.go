package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGlobalConfig(t *testing.T) {
	cfg := DefaultGlobalConfig()
	if cfg.RetentionDays != 90 {
		t.Errorf("expected RetentionDays=90, got %d", cfg.RetentionDays)
	}
	if cfg.Program.MaxRounds != 3 {
		t.Errorf("expected Program.MaxRounds=3, got %d", cfg.Program.MaxRounds)
	}
	if cfg.DoD.TestsCommand != "go test ./..." {
		t.Errorf("expected default tests command, got %q", cfg.DoD.TestsCommand)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGlobalConfig_SaveLoad(t *testing.T) {
	t.Setenv("ACLO_LOG_LEVEL", "")
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultGlobalConfig()
	cfg.Logging.Level = "debug"
	cfg.Program.Batch.Parallel = 4

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("expected Level=debug, got %s", loaded.Logging.Level)
	}
	if loaded.Program.Batch.Parallel != 4 {
		t.Errorf("expected Parallel=4, got %d", loaded.Program.Batch.Parallel)
	}
}

func TestGlobalConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.RetentionDays != 90 {
		t.Errorf("expected defaults, got RetentionDays=%d", cfg.RetentionDays)
	}
}

func TestGlobalConfig_EnvOverrides(t *testing.T) {
	os.Setenv("ACLO_AGENT_BUDGET", "7")
	defer os.Unsetenv("ACLO_AGENT_BUDGET")
	os.Setenv("ACLO_DOD_TESTS_COMMAND", "make test")
	defer os.Unsetenv("ACLO_DOD_TESTS_COMMAND")

	cfg := DefaultGlobalConfig()
	cfg.applyEnvOverrides()

	if cfg.Program.Batch.AgentBudget == nil || *cfg.Program.Batch.AgentBudget != 7 {
		t.Errorf("expected AgentBudget=7, got %v", cfg.Program.Batch.AgentBudget)
	}
	if cfg.DoD.TestsCommand != "make test" {
		t.Errorf("expected tests command override, got %q", cfg.DoD.TestsCommand)
	}
}

func TestBatchConfig_BaseParallel(t *testing.T) {
	cases := []struct {
		name            string
		parallel        int
		continueOnError bool
		want            int
	}{
		{"sequential default", 0, false, 1},
		{"continue on error honors parallel", 4, true, 4},
		{"stop on error forces sequential", 4, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := BatchConfig{Parallel: tc.parallel, ContinueOnError: tc.continueOnError}
			if got := c.BaseParallel(); got != tc.want {
				t.Errorf("BaseParallel() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRetryPolicy_EffectiveMaxRounds(t *testing.T) {
	cases := []struct {
		name   string
		policy RetryPolicy
		want   int
	}{
		{"default sequential single round", DefaultRetryPolicy(), 1},
		{"explicit rounds", RetryPolicy{Rounds: 3}, 3},
		{"until complete uses max rounds", RetryPolicy{UntilComplete: true, MaxRounds: 10}, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.EffectiveMaxRounds(); got != tc.want {
				t.Errorf("EffectiveMaxRounds() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProgramConfig_ValidateRejectsOutOfRangeGoals(t *testing.T) {
	c := DefaultProgramConfig()
	c.Goals = 1
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for Goals=1")
	}
	c.Goals = 13
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for Goals=13")
	}
}

func TestProgramConfig_MaxRoundsZeroDisablesGovernance(t *testing.T) {
	c := DefaultProgramConfig()
	c.MaxRounds = 0
	if err := c.Validate(); err != nil {
		t.Errorf("max_rounds=0 should validate (governance disabled): %v", err)
	}
}
