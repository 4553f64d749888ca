package sudokidle

import (
	"context"
)

// AppState is an app lifecycle state reported by the client.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)

// EnterBackground checkpoints the game: it persists the player and settings, stamps every idler
// with the current time without crediting anything, and stops the autofill countdown and idle
// polling.
func (g *Game) EnterBackground(ctx context.Context) {
	withLock(ctx, g, func() struct{} {
		g.foreground = false
		g.player.save(ctx)
		g.saveSettings(ctx, g.settings)
		g.idlers.Checkpoint(ctx)
		g.stopIdlePollingLocked()
		g.syncAutofill(false)
		return struct{}{}
	})
}

// EnterForeground credits idle production for the time spent in the background and restarts
// the autofill countdown from its initial value if autofill is unlocked and enabled. It returns
// the sudokus produced.
func (g *Game) EnterForeground(ctx context.Context) int64 {
	return withLock(ctx, g, func() int64 {
		g.foreground = true
		produced := g.collectLocked(ctx)
		if g.idlePolling {
			g.startIdlePollingLocked()
		}
		g.syncAutofill(true)
		return produced
	})
}

// HandleLifecycle dispatches a lifecycle transition. Background and inactive are treated alike.
func (g *Game) HandleLifecycle(ctx context.Context, state AppState) (int64, error) {
	switch state {
	case AppStateBackground, AppStateInactive:
		g.EnterBackground(ctx)
		return 0, nil
	case AppStateActive:
		return g.EnterForeground(ctx), nil
	default:
		return 0, ErrUnknownAppState
	}
}
