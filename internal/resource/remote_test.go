package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRemote_Success(t *testing.T) {
	r := NewRemote("projects", func(context.Context) ([]string, error) {
		return []string{"model-zoo"}, nil
	}, []string{}, zap.NewNop())

	assert.Equal(t, StateIdle, r.Snapshot().State)

	got := r.Load(context.Background())
	assert.Equal(t, []string{"model-zoo"}, got)

	snap := r.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestRemote_FailureFallsBack(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRemote("score", func(context.Context) (int, error) {
		return 0, boom
	}, -1, zap.NewNop())

	assert.Equal(t, -1, r.Load(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, "connection refused", snap.Error)
	assert.Equal(t, -1, snap.Data)
}

func TestRemote_CancelledLoadLeavesStateAlone(t *testing.T) {
	calls := 0
	r := NewRemote("feed", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "first", nil
		}
		return "", ctx.Err()
	}, "", zap.NewNop())

	r.Load(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, "", r.Load(ctx))

	snap := r.Snapshot()
	// the abandoned load neither fails nor replaces the ready data
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "first", snap.Data)
}

func TestRemote_Reset(t *testing.T) {
	r := NewRemote("feed", func(context.Context) (int, error) { return 7, nil }, 0, zap.NewNop())
	r.Load(context.Background())
	r.Reset()

	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 0, snap.Data)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
