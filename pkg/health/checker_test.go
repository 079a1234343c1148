package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{"all healthy", []Checker{NewPingChecker("store", ok, 0, false), NewPingChecker("tokenmetrics", ok, 0, true)}, StatusHealthy},
		{"optional upstream down", []Checker{NewPingChecker("store", ok, 0, false), NewPingChecker("tokenmetrics", fail, 0, true)}, StatusDegraded},
		{"required dependency down", []Checker{NewPingChecker("store", fail, 0, false), NewPingChecker("tokenmetrics", fail, 0, true)}, StatusUnhealthy},
		{"nothing registered", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(time.Second)
			for _, c := range tt.checkers {
				h.Register(c)
			}
			status, results := h.Check(context.Background())
			assert.Equal(t, tt.want, status)
			assert.Len(t, results, len(tt.checkers))
		})
	}
}

func TestPingChecker_ReportsError(t *testing.T) {
	result := NewPingChecker("coingecko", fail, 0, true).Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, "connection refused", result.Error)
	assert.Equal(t, "coingecko unreachable", result.Message)
}

func TestPingChecker_Timeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	result := NewPingChecker("slow", slow, 20*time.Millisecond, false).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "deadline exceeded")
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	checker := NewRedisChecker(client, time.Second)
	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Contains(t, result.Metadata, "total_conns")

	mr.Close()
	result = checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestDatabaseChecker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	checker := NewDatabaseChecker(sqlx.NewDb(db, "sqlmock"), time.Second)

	mock.ExpectPing()
	assert.Equal(t, StatusHealthy, checker.Check(context.Background()).Status)

	mock.ExpectPing().WillReturnError(errors.New("server closed the connection"))
	result := checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "server closed the connection", result.Error)

	assert.NoError(t, mock.ExpectationsWereMet())
}
