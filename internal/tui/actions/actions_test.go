package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glabrego/feedhaven/internal/library"
	"github.com/glabrego/feedhaven/internal/workspace"
)

func TestLoadPageCmd_CarriesDeadlineAndResult(t *testing.T) {
	var deadline time.Time
	scope := library.FolderScope(3)
	cmd := LoadPageCmd(func(ctx context.Context) workspace.PageResult {
		if dl, ok := ctx.Deadline(); ok {
			deadline = dl
		}
		return workspace.PageResult{Scope: scope}
	})

	raw := cmd()
	msg, ok := raw.(PageResultMsg)
	if !ok {
		t.Fatalf("expected PageResultMsg, got %T", raw)
	}
	if msg.Result.Scope != scope {
		t.Fatalf("scope not carried through: %+v", msg.Result)
	}
	if deadline.IsZero() {
		t.Fatal("request context should carry a deadline")
	}
	if remaining := time.Until(deadline); remaining > requestTimeout {
		t.Fatalf("deadline too far out: %v", remaining)
	}
}

func TestRefreshCmd_ReportsDuration(t *testing.T) {
	cmd := RefreshCmd(func(ctx context.Context) workspace.RefreshOutcome {
		time.Sleep(5 * time.Millisecond)
		return workspace.RefreshOutcome{Err: errors.New("boom")}
	})

	raw := cmd()
	msg, ok := raw.(RefreshResultMsg)
	if !ok {
		t.Fatalf("expected RefreshResultMsg, got %T", raw)
	}
	if msg.Outcome.Err == nil {
		t.Fatal("error not carried through")
	}
	if msg.Duration <= 0 {
		t.Fatalf("duration not measured: %v", msg.Duration)
	}
}

func TestAddCmd_WrapsResult(t *testing.T) {
	cmd := AddCmd(func(ctx context.Context) workspace.AddResult {
		return workspace.AddResult{Err: errors.New("boom")}
	})
	raw := cmd()
	msg, ok := raw.(AddResultMsg)
	if !ok {
		t.Fatalf("expected AddResultMsg, got %T", raw)
	}
	if msg.Result.Err == nil {
		t.Fatal("error not carried through")
	}
}

func TestPersistCmd(t *testing.T) {
	wantErr := errors.New("disk full")
	cmd := PersistCmd(func(ctx context.Context) error { return wantErr })
	raw := cmd()
	msg, ok := raw.(PersistDoneMsg)
	if !ok {
		t.Fatalf("expected PersistDoneMsg, got %T", raw)
	}
	if !errors.Is(msg.Err, wantErr) {
		t.Fatalf("err = %v", msg.Err)
	}
}

func TestLoadSnapshotCmd(t *testing.T) {
	cmd := LoadSnapshotCmd(func(ctx context.Context) workspace.SnapshotResult {
		return workspace.SnapshotResult{Feeds: []*library.Subscription{{ID: 1}}}
	})
	raw := cmd()
	msg, ok := raw.(SnapshotLoadedMsg)
	if !ok {
		t.Fatalf("expected SnapshotLoadedMsg, got %T", raw)
	}
	if len(msg.Result.Feeds) != 1 {
		t.Fatalf("snapshot not carried through: %+v", msg.Result)
	}
}
