package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shaycichocki/missionctl/pkg/models"
)

func TestLocalSubprocessBackendParsesSuccessEnvelope(t *testing.T) {
	b := &LocalSubprocessBackend{
		Command: "sh",
		Args:    []string{"-c", `printf 'MC_RESULT {\nstatus: ok\nsummary: "did the thing"\nfiles_changed: [a.go, b.go]\ncost_usd: 0.42\ntokens: 100\n}\n'`},
	}
	env, err := b.Run(context.Background(), t.TempDir(), models.WorkUnit{Description: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !env.Succeeded() {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	if len(env.FilesChanged) != 2 {
		t.Errorf("expected 2 files changed, got %v", env.FilesChanged)
	}
	if env.CostUSD != 0.42 {
		t.Errorf("expected cost 0.42, got %f", env.CostUSD)
	}
}

func TestLocalSubprocessBackendHandlesMissingMarker(t *testing.T) {
	b := &LocalSubprocessBackend{Command: "sh", Args: []string{"-c", "echo nothing useful"}}
	env, err := b.Run(context.Background(), t.TempDir(), models.WorkUnit{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ErrorKind != models.ErrorParse {
		t.Fatalf("expected parse error kind, got %+v", env)
	}
}

func TestLocalSubprocessBackendHandlesNonZeroExit(t *testing.T) {
	b := &LocalSubprocessBackend{Command: "sh", Args: []string{"-c", "exit 3"}}
	env, err := b.Run(context.Background(), t.TempDir(), models.WorkUnit{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ExitStatus != 3 {
		t.Errorf("expected exit status 3, got %d", env.ExitStatus)
	}
}

func TestLocalSubprocessBackendHandlesTimeout(t *testing.T) {
	b := &LocalSubprocessBackend{Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 50 * time.Millisecond}
	env, err := b.Run(context.Background(), t.TempDir(), models.WorkUnit{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ErrorKind != models.ErrorTransient {
		t.Fatalf("expected transient error kind for timeout, got %+v", env)
	}
}
