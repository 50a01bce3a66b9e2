package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/platform/auth"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

const webhookBodyLimit = 1 << 20

type pipelinesAPI struct {
	logger         *slog.Logger
	svc            *pipelineService
	webhookSecret  string
	webhookMaxSkew time.Duration
}

func newPipelinesAPI(logger *slog.Logger, svc *pipelineService, webhookSecret string) *pipelinesAPI {
	return &pipelinesAPI{
		logger:         logger,
		svc:            svc,
		webhookSecret:  strings.TrimSpace(webhookSecret),
		webhookMaxSkew: 5 * time.Minute,
	}
}

func (api *pipelinesAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /events", api.handleEvent)
	mux.HandleFunc("GET /runs", api.handleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
}

type eventRequest struct {
	Event  string `json:"event"`
	Branch string `json:"branch"`
	Commit string `json:"commit,omitempty"`
	Sender string `json:"sender,omitempty"`
}

type runResponse struct {
	RunID           string          `json:"run_id"`
	Event           string          `json:"event"`
	Branch          string          `json:"branch"`
	Commit          string          `json:"commit,omitempty"`
	Status          string          `json:"status"`
	DerivedStatus   string          `json:"derived_status,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	FailedStep      string          `json:"failed_step,omitempty"`
	FailedStepIndex *int            `json:"failed_step_index,omitempty"`
	FailedExitCode  *int            `json:"failed_exit_code,omitempty"`
	Metadata        json.RawMessage `json:"metadata"`
	CreatedBy       string          `json:"created_by,omitempty"`
	Steps           []stepResponse  `json:"steps,omitempty"`
}

type stepResponse struct {
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	ExitCode   int        `json:"exit_code"`
	OutputTail string     `json:"output_tail,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (api *pipelinesAPI) handleEvent(w http.ResponseWriter, r *http.Request) {
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	if api.webhookSecret == "" {
		api.writeError(w, r, http.StatusInternalServerError, "webhook_not_configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_body")
		return
	}

	ts := r.Header.Get(auth.HeaderWebhookTimestamp)
	if err := auth.VerifyWebhookTimestamp(ts, time.Now(), api.webhookMaxSkew); err != nil {
		api.writeError(w, r, http.StatusUnauthorized, "invalid_timestamp")
		return
	}
	sig := r.Header.Get(auth.HeaderWebhookSignature)
	if err := auth.VerifyWebhookSignature(api.webhookSecret, ts, r.Method, body, sig); err != nil {
		api.writeError(w, r, http.StatusUnauthorized, "invalid_signature")
		return
	}

	var req eventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	event, ok := domain.ParseTriggerEvent(req.Event)
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "unsupported_event")
		return
	}
	if strings.TrimSpace(req.Branch) == "" {
		api.writeError(w, r, http.StatusBadRequest, "branch_required")
		return
	}

	actor := strings.TrimSpace(req.Sender)
	if actor == "" {
		actor = "webhook"
	}
	run, accepted, err := api.svc.HandleEvent(r.Context(), event, req.Branch, req.Commit, auditContext{
		Actor:     actor,
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Service:   "pipelines",
	})
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	if !accepted {
		api.writeJSON(w, http.StatusAccepted, map[string]any{"status": "ignored"})
		return
	}
	w.Header().Set("Location", "/runs/"+run.ID)
	api.writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"run_id": run.ID,
	})
}

func (api *pipelinesAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	filter := repo.RunFilter{
		Event:  strings.TrimSpace(r.URL.Query().Get("event")),
		Branch: strings.TrimSpace(r.URL.Query().Get("branch")),
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:  clampInt(parseIntQuery(r, "limit", 100), 1, 500),
	}
	runs, err := api.svc.ListRuns(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run, nil, ""))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (api *pipelinesAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	run, steps, derived, err := api.svc.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, toRunResponse(run, steps, derived))
}

func toRunResponse(run domain.PipelineRun, steps []domain.StepExecution, derived domain.RunState) runResponse {
	metaJSON, _ := json.Marshal(run.Metadata)
	out := runResponse{
		RunID:           run.ID,
		Event:           string(run.Event),
		Branch:          run.Branch,
		Commit:          run.Commit,
		Status:          string(run.Status),
		DerivedStatus:   string(derived),
		StartedAt:       run.StartedAt,
		EndedAt:         run.EndedAt,
		FailedStep:      run.FailedStep,
		FailedStepIndex: run.FailedStepIndex,
		FailedExitCode:  run.FailedExitCode,
		Metadata:        normalizeJSON(metaJSON),
		CreatedBy:       run.CreatedBy,
	}
	for _, step := range steps {
		out.Steps = append(out.Steps, stepResponse{
			Index:      step.Index,
			Name:       step.Name,
			Status:     string(step.Status),
			ExitCode:   step.ExitCode,
			OutputTail: step.OutputTail,
			StartedAt:  step.StartedAt,
			FinishedAt: step.FinishedAt,
		})
	}
	return out
}

func (api *pipelinesAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *pipelinesAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func normalizeJSON(raw []byte) json.RawMessage {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
