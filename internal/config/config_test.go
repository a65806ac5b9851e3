package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.SizeLimit != 15000 {
		t.Errorf("SizeLimit = %d, want 15000", cfg.Pipeline.SizeLimit)
	}
	if cfg.Pipeline.MaxHeaderChars != 3000 {
		t.Errorf("MaxHeaderChars = %d, want 3000", cfg.Pipeline.MaxHeaderChars)
	}

	wantBackoff := []int{2, 4, 6, 10, 30, 60, 90}
	if len(cfg.Pipeline.BackoffSeconds) != len(wantBackoff) {
		t.Fatalf("BackoffSeconds = %v, want %v", cfg.Pipeline.BackoffSeconds, wantBackoff)
	}
	for i, s := range wantBackoff {
		if cfg.Pipeline.BackoffSeconds[i] != s {
			t.Errorf("BackoffSeconds[%d] = %d, want %d", i, cfg.Pipeline.BackoffSeconds[i], s)
		}
	}

	wantLadder := []int{6, 4, 2, 1}
	for i, s := range wantLadder {
		if cfg.Pipeline.BatchLadder[i] != s {
			t.Errorf("BatchLadder[%d] = %d, want %d", i, cfg.Pipeline.BatchLadder[i], s)
		}
	}

	// The truncation ladder starts at the untruncated attempt.
	if cfg.Pipeline.TruncationRatios[0] != 1.0 {
		t.Errorf("TruncationRatios[0] = %v, want 1.0", cfg.Pipeline.TruncationRatios[0])
	}
}

func TestPipelineConfigDurations(t *testing.T) {
	p := PipelineConfig{
		BackoffSeconds:     []int{2, 4},
		CallTimeoutSeconds: 300,
	}
	delays := p.BackoffDelays()
	if delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Errorf("BackoffDelays() = %v", delays)
	}
	if p.CallTimeout() != 5*time.Minute {
		t.Errorf("CallTimeout() = %v, want 5m", p.CallTimeout())
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("MAILDIGEST_TEST_KEY", "sk-secret")

	if got := ResolveEnvVars("${MAILDIGEST_TEST_KEY}"); got != "sk-secret" {
		t.Errorf("ResolveEnvVars() = %q, want the env value", got)
	}
	if got := ResolveEnvVars("${MAILDIGEST_UNSET_VAR}"); got != "${MAILDIGEST_UNSET_VAR}" {
		t.Errorf("ResolveEnvVars() = %q, want the placeholder preserved", got)
	}
	if got := ResolveEnvVars("plain-key"); got != "plain-key" {
		t.Errorf("ResolveEnvVars() = %q, want unchanged", got)
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profile.Name = "Casey"
	cfg.Categories = []string{"news", "deals"}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Write(cfg, path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// The config can hold an API key; keep it private.
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"Casey", "news", "deals", "size_limit: 15000"} {
		if !strings.Contains(out, want) {
			t.Errorf("config missing %q:\n%s", want, out)
		}
	}
}
