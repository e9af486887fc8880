package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/podstreak/middleware"
	"github.com/cppla/podstreak/streak"
)

const expirePath = "/api/v1/cron/expire-streaks"

// envelope mirrors the API's JSON response wrapper.
type envelope struct {
	Code    int                  `json:"code"`
	Message string               `json:"message"`
	Data    *streak.SweepSummary `json:"data"`
}

func newTriggerCommand(opts *rootOptions) *cobra.Command {
	var attempts uint

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run one expiry sweep and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &trigger{client: newHTTPClient(opts), baseURL: opts.URL, secret: opts.Secret, attempts: attempts, log: opts.log}
			summary, err := t.run(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
		},
	}
	cmd.Flags().UintVar(&attempts, "attempts", 3, "attempts before giving up on network or 5xx errors")
	return cmd
}

func newHTTPClient(opts *rootOptions) *http.Client {
	return &http.Client{Timeout: opts.Timeout}
}

// trigger posts the sweep request, retrying network failures and 5xx responses.
type trigger struct {
	client   *http.Client
	baseURL  string
	secret   string
	attempts uint
	log      *zap.Logger
}

func (t *trigger) run(ctx context.Context) (*streak.SweepSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	summary, err := backoff.Retry(ctx, func() (*streak.SweepSummary, error) {
		return t.post(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(max(t.attempts, 1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			t.log.Warn("sweep request failed, retrying", zap.Duration("backoff", next), zap.Error(err))
		}),
	)
	if err != nil {
		t.log.Error("sweep trigger failed", zap.Error(err))
		return nil, err
	}
	t.log.Info("sweep finished",
		zap.Int("broken_streaks", summary.BrokenStreaks),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return summary, nil
}

func (t *trigger) post(ctx context.Context) (*streak.SweepSummary, error) {
	url := strings.TrimRight(t.baseURL, "/") + expirePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set(middleware.CronSecretHeader, t.secret)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("sweep returned %d: %s", resp.StatusCode, body.Message)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("sweep rejected with %d: %s", resp.StatusCode, body.Message))
	case decodeErr != nil:
		return nil, backoff.Permanent(fmt.Errorf("decode sweep response: %w", decodeErr))
	case body.Data == nil:
		return nil, backoff.Permanent(fmt.Errorf("sweep response has no summary"))
	}
	return body.Data, nil
}
