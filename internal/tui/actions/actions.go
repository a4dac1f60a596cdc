// Package actions wraps workspace request closures in bubbletea
// commands. Every network call runs inside a command with its own
// timeout and resolves to a typed message the model applies on the
// program loop.
package actions

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/feedhaven/internal/mutate"
	"github.com/glabrego/feedhaven/internal/workspace"
)

const requestTimeout = 10 * time.Second

type PageResultMsg struct {
	Result workspace.PageResult
}

type RefreshResultMsg struct {
	Outcome  workspace.RefreshOutcome
	Duration time.Duration
}

type MutationResultMsg struct {
	Result mutate.Result
}

type AddResultMsg struct {
	Result workspace.AddResult
}

// AddCountdownMsg ticks once a second while a rate-limited add
// operation waits; Remaining hits zero when the retry is due.
type AddCountdownMsg struct {
	Remaining time.Duration
}

type FolderRenamedMsg struct {
	Result workspace.FolderRenameResult
}

type SnapshotLoadedMsg struct {
	Result workspace.SnapshotResult
}

type PersistDoneMsg struct {
	Err error
}

type ClearNoticeMsg struct {
	ID int
}

func LoadPageCmd(request func(ctx context.Context) workspace.PageResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return PageResultMsg{Result: request(ctx)}
	}
}

func RefreshCmd(request func(ctx context.Context) workspace.RefreshOutcome) tea.Cmd {
	return func() tea.Msg {
		// A full refresh fans out to several requests; give it more room.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		start := time.Now()
		outcome := request(ctx)
		return RefreshResultMsg{Outcome: outcome, Duration: time.Since(start)}
	}
}

func MutationCmd(op *mutate.Op) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return MutationResultMsg{Result: op.Request(ctx)}
	}
}

func AddCmd(request func(ctx context.Context) workspace.AddResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return AddResultMsg{Result: request(ctx)}
	}
}

func RenameFolderCmd(request func(ctx context.Context) workspace.FolderRenameResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return FolderRenamedMsg{Result: request(ctx)}
	}
}

// CountdownCmd emits AddCountdownMsg after one second with the time
// still left to wait. The model keeps re-issuing it until Remaining
// reaches zero, then resumes the interrupted add effect.
func CountdownCmd(remaining time.Duration) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		next := remaining - time.Second
		if next < 0 {
			next = 0
		}
		return AddCountdownMsg{Remaining: next}
	})
}

func LoadSnapshotCmd(request func(ctx context.Context) workspace.SnapshotResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return SnapshotLoadedMsg{Result: request(ctx)}
	}
}

func PersistCmd(persist func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return PersistDoneMsg{Err: persist(ctx)}
	}
}

// ClearNoticeCmd dismisses a transient notice after a short while.
func ClearNoticeCmd(id int) tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{ID: id}
	})
}
