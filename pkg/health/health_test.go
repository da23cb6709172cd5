package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(context.Context) error { return errors.New("connection refused") }

func probe(t *testing.T, h http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLiveness_IgnoresCheckers(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("redis", down)

	code, resp := probe(t, h.LivenessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		critical    map[string]Checker
		nonCritical map[string]Checker
		wantCode    int
		wantStatus  Status
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name:        "all up",
			critical:    map[string]Checker{"redis": up},
			nonCritical: map[string]Checker{"kafka": up},
			wantCode:    http.StatusOK,
			wantStatus:  StatusUp,
		},
		{
			name:        "state store down",
			critical:    map[string]Checker{"postgres": down},
			nonCritical: map[string]Checker{"kafka": up},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  StatusDown,
		},
		{
			name:        "event broker down degrades",
			critical:    map[string]Checker{"redis": up},
			nonCritical: map[string]Checker{"kafka": down},
			wantCode:    http.StatusOK,
			wantStatus:  StatusDegraded,
		},
		{
			name:        "critical wins over degraded",
			critical:    map[string]Checker{"redis": down},
			nonCritical: map[string]Checker{"kafka": down},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			for name, c := range tt.critical {
				h.RegisterCritical(name, c)
			}
			for name, c := range tt.nonCritical {
				h.RegisterNonCritical(name, c)
			}

			code, resp := probe(t, h.ReadinessHandler())

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.critical)+len(tt.nonCritical))
		})
	}
}

func TestCheck_ResultDetails(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("redis", down)
	h.RegisterNonCritical("kafka", up)

	resp := h.Check(context.Background())

	redis := resp.Checks["redis"]
	assert.Equal(t, StatusDown, redis.Status)
	assert.True(t, redis.Critical)
	assert.Equal(t, "connection refused", redis.Error)
	assert.NotEmpty(t, redis.Duration)

	kafka := resp.Checks["kafka"]
	assert.Equal(t, StatusUp, kafka.Status)
	assert.False(t, kafka.Critical)
	assert.Empty(t, kafka.Error)
}

func TestCheck_TimeoutMarksHungCheckerDown(t *testing.T) {
	h := NewHandler().WithTimeout(20 * time.Millisecond)
	h.RegisterCritical("postgres", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	start := time.Now()
	resp := h.Check(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["postgres"].Error)
}

func TestRegister_ReplacesAndSortsNames(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("kafka", down)
	h.RegisterCritical("redis", up)
	h.RegisterCritical("kafka", up)

	assert.Equal(t, []string{"kafka", "redis"}, h.Names())
	assert.Equal(t, StatusUp, h.Check(context.Background()).Status)
}
