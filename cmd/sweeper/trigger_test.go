package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTrigger(url string) *trigger {
	return &trigger{
		client:   &http.Client{Timeout: 5 * time.Second},
		baseURL:  url,
		secret:   "s3cret",
		attempts: 3,
		log:      zap.NewNop(),
	}
}

func TestTriggerSendsSecretAndDecodesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, expirePath, r.URL.Path)
		assert.Equal(t, "s3cret", r.Header.Get("X-Cron-Secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"broken_streaks":2,"users_affected":[4,9],"failed":0}}`))
	}))
	defer srv.Close()

	summary, err := newTestTrigger(srv.URL + "/").run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.BrokenStreaks)
	assert.Equal(t, []uint{4, 9}, summary.UsersAffected)
}

func TestTriggerDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":40120,"message":"unauthorized"}`))
	}))
	defer srv.Close()

	_, err := newTestTrigger(srv.URL).run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTriggerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code":50020,"message":"expiry sweep failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"broken_streaks":0,"users_affected":[],"failed":0}}`))
	}))
	defer srv.Close()

	summary, err := newTestTrigger(srv.URL).run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.BrokenStreaks)
	assert.Equal(t, int32(2), calls.Load())
}
