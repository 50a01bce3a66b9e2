package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
)

// statusReporter posts run completions back to the service that surfaced the
// trigger event, so a failed run marks the triggering commit's status. When
// OAuth client credentials are configured the callback is called with a
// bearer token; otherwise the request goes out unauthenticated.
type statusReporter struct {
	logger      *slog.Logger
	callbackURL string
	client      *http.Client
	timeout     time.Duration
}

type reporterConfig struct {
	CallbackURL  string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func newStatusReporter(ctx context.Context, logger *slog.Logger, cfg reporterConfig) *statusReporter {
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil
	}
	client := &http.Client{Timeout: 10 * time.Second}
	if strings.TrimSpace(cfg.TokenURL) != "" {
		cc := clientcredentials.Config{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(ctx)
		client.Timeout = 10 * time.Second
	}
	return &statusReporter{
		logger:      logger,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		client:      client,
		timeout:     10 * time.Second,
	}
}

type runStatusPayload struct {
	RunID           string `json:"run_id"`
	Event           string `json:"event"`
	Branch          string `json:"branch"`
	Commit          string `json:"commit,omitempty"`
	Status          string `json:"status"`
	FailedStep      string `json:"failed_step,omitempty"`
	FailedStepIndex *int   `json:"failed_step_index,omitempty"`
	FailedExitCode  *int   `json:"failed_exit_code,omitempty"`
}

// Report is best effort: a callback failure is logged, never propagated into
// the run's own state.
func (rep *statusReporter) Report(ctx context.Context, run domain.PipelineRun) {
	if rep == nil {
		return
	}
	payload := runStatusPayload{
		RunID:           run.ID,
		Event:           string(run.Event),
		Branch:          run.Branch,
		Commit:          run.Commit,
		Status:          string(run.Status),
		FailedStep:      run.FailedStep,
		FailedStepIndex: run.FailedStepIndex,
		FailedExitCode:  run.FailedExitCode,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		rep.logger.Warn("status report encode failed", "run_id", run.ID, "error", err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, rep.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, rep.callbackURL, bytes.NewReader(body))
	if err != nil {
		rep.logger.Warn("status report request failed", "run_id", run.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rep.client.Do(req)
	if err != nil {
		rep.logger.Warn("status report delivery failed", "run_id", run.ID, "error", err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		rep.logger.Warn("status report rejected", "run_id", run.ID, "status", resp.StatusCode)
		return
	}
	rep.logger.Info("status reported", "run_id", run.ID, "run_status", string(run.Status))
}

func reporterConfigFromEnv(getenv func(key, def string) string) (reporterConfig, error) {
	cfg := reporterConfig{
		CallbackURL:  getenv("GAMELOG_STATUS_CALLBACK_URL", ""),
		TokenURL:     getenv("GAMELOG_STATUS_OAUTH_TOKEN_URL", ""),
		ClientID:     getenv("GAMELOG_STATUS_OAUTH_CLIENT_ID", ""),
		ClientSecret: getenv("GAMELOG_STATUS_OAUTH_CLIENT_SECRET", ""),
	}
	if scopes := strings.TrimSpace(getenv("GAMELOG_STATUS_OAUTH_SCOPES", "")); scopes != "" {
		for _, scope := range strings.Split(scopes, ",") {
			if s := strings.TrimSpace(scope); s != "" {
				cfg.Scopes = append(cfg.Scopes, s)
			}
		}
	}
	if strings.TrimSpace(cfg.TokenURL) != "" && strings.TrimSpace(cfg.ClientID) == "" {
		return reporterConfig{}, fmt.Errorf("GAMELOG_STATUS_OAUTH_CLIENT_ID is required when a token url is set")
	}
	return cfg, nil
}
