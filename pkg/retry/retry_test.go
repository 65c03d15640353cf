package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestDo_Success(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestDo_SuccessAfterTransientErrors(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		return errors.New("i/o timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 4, callCount) // initial attempt + 3 retries
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	callCount := 0
	authErr := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		return authErr
	})
	require.ErrorIs(t, err, authErr)
	assert.Equal(t, 1, callCount)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 10, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}

	callCount := 0
	err := Do(ctx, cfg, func() error {
		callCount++
		cancel()
		return errors.New("connection reset by peer")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	callCount := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		callCount++
		if callCount == 1 {
			return 0, errors.New("the database system is starting up")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, callCount)
}

func TestDoWithResult_NilConfigUsesDefaults(t *testing.T) {
	got, err := DoWithResult(context.Background(), nil, func() (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"context canceled", context.Canceled, false},
		{"auth failure", &pgconn.PgError{Code: "28P01"}, false},
		{"unknown database", &pgconn.PgError{Code: "3D000"}, false},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("bad input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
