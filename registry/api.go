package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"

	"github.com/google/uuid"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/gamelog"
	"github.com/gamelog-labs/gamelog-go/internal/integrity"
	"github.com/gamelog-labs/gamelog-go/internal/platform/auth"
	"github.com/gamelog-labs/gamelog-go/internal/platform/objectstore"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type datasetRegistryAPI struct {
	logger         *slog.Logger
	db             *sql.DB
	store          *minio.Client
	storeCfg       objectstore.Config
	uploadMaxBytes int64
	uploadTimeout  time.Duration
	svc            *datasetService
}

func newDatasetRegistryAPI(logger *slog.Logger, db *sql.DB, store *minio.Client, storeCfg objectstore.Config, uploadMaxBytes int64, uploadTimeout time.Duration, svc *datasetService) *datasetRegistryAPI {
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = int64(2) << 30 // 2 GiB
	}
	if uploadTimeout <= 0 {
		uploadTimeout = 30 * time.Minute
	}
	return &datasetRegistryAPI{
		logger:         logger,
		db:             db,
		store:          store,
		storeCfg:       storeCfg,
		uploadMaxBytes: uploadMaxBytes,
		uploadTimeout:  uploadTimeout,
		svc:            svc,
	}
}

func (api *datasetRegistryAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /datasets", api.handleListDatasets)
	mux.HandleFunc("POST /datasets", api.handleCreateDataset)
	mux.HandleFunc("GET /datasets/{dataset_id}", api.handleGetDataset)

	mux.HandleFunc("GET /datasets/{dataset_id}/versions", api.handleListDatasetVersions)
	mux.HandleFunc("POST /datasets/{dataset_id}/versions/upload", api.handleUploadDatasetVersion)

	mux.HandleFunc("GET /dataset-versions/{version_id}", api.handleGetDatasetVersion)
	mux.HandleFunc("GET /dataset-versions/{version_id}/download", api.handleDownloadDatasetVersion)
	mux.HandleFunc("POST /dataset-versions/{version_id}/verify", api.handleVerifyDatasetVersion)
}

type dataset struct {
	DatasetID   string          `json:"dataset_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source,omitempty"`
	Columns     []string        `json:"columns"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
}

type datasetVersion struct {
	VersionID     string          `json:"version_id"`
	DatasetID     string          `json:"dataset_id"`
	Ordinal       int64           `json:"ordinal"`
	ContentSHA256 string          `json:"content_sha256"`
	ObjectKey     string          `json:"object_key"`
	SizeBytes     int64           `json:"size_bytes,omitempty"`
	RowCount      int64           `json:"row_count,omitempty"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	CreatedBy     string          `json:"created_by"`
}

type createDatasetRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source,omitempty"`
	Columns     []string       `json:"columns,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type verifyRequest struct {
	ExpectedSHA256 string `json:"expected_sha256,omitempty"`
}

type verifyResponse struct {
	VersionID      string `json:"version_id"`
	Outcome        string `json:"outcome"`
	ExpectedSHA256 string `json:"expected_sha256"`
	ActualSHA256   string `json:"actual_sha256,omitempty"`
}

func (api *datasetRegistryAPI) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var req createDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	created, err := api.svc.CreateDataset(r.Context(), req.Name, req.Description, req.Source, req.Columns, req.Metadata, buildAuditContext(r, identity))
	if err != nil {
		if isUniqueViolation(err) {
			api.writeError(w, r, http.StatusConflict, "dataset_name_exists")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Location", "/datasets/"+created.ID)
	api.writeJSON(w, http.StatusCreated, toDataset(created))
}

func (api *datasetRegistryAPI) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	datasets, err := api.svc.ListDatasets(r.Context(), limit)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	out := make([]dataset, 0, len(datasets))
	for _, item := range datasets {
		out = append(out, toDataset(item))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (api *datasetRegistryAPI) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	found, err := api.svc.GetDataset(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, toDataset(found))
}

func (api *datasetRegistryAPI) handleListDatasetVersions(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	versions, err := api.svc.ListDatasetVersions(r.Context(), datasetID, limit)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	out := make([]datasetVersion, 0, len(versions))
	for _, item := range versions {
		out = append(out, toDatasetVersion(item))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"versions": out})
}

const validateModeGamelog = "gamelog"

func (api *datasetRegistryAPI) handleUploadDatasetVersion(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}
	if api.svc == nil || api.store == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	if r.ContentLength > 0 && r.ContentLength > api.uploadMaxBytes {
		api.writeErrorWithDetails(w, r, http.StatusRequestEntityTooLarge, "upload_too_large", map[string]any{
			"max_bytes":      api.uploadMaxBytes,
			"content_length": r.ContentLength,
		})
		return
	}

	if _, err := api.svc.GetDataset(r.Context(), datasetID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	versionID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, api.uploadMaxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
		return
	}

	metadataMap := map[string]any{}
	var (
		uploadedObjectKey string
		contentSHA256     string
		sizeBytes         int64
		rowCount          int64
		filename          string
		contentType       string
		validateMode      string
	)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				api.writeErrorWithDetails(w, r, http.StatusRequestEntityTooLarge, "upload_too_large", map[string]any{
					"max_bytes": api.uploadMaxBytes,
				})
				return
			}
			api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
			return
		}
		switch part.FormName() {
		case "metadata":
			raw, err := io.ReadAll(io.LimitReader(part, 1<<20))
			_ = part.Close()
			if err != nil {
				api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
				return
			}
			raw = []byte(strings.TrimSpace(string(raw)))
			if len(raw) == 0 {
				continue
			}
			if err := json.Unmarshal(raw, &metadataMap); err != nil {
				api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
				return
			}
		case "validate":
			// Must precede the file part to take effect.
			raw, err := io.ReadAll(io.LimitReader(part, 256))
			_ = part.Close()
			if err != nil {
				api.writeError(w, r, http.StatusBadRequest, "invalid_validate_mode")
				return
			}
			validateMode = strings.ToLower(strings.TrimSpace(string(raw)))
			if validateMode != "" && validateMode != validateModeGamelog {
				api.writeError(w, r, http.StatusBadRequest, "invalid_validate_mode")
				return
			}
		case "file":
			if uploadedObjectKey != "" {
				_ = part.Close()
				api.writeError(w, r, http.StatusBadRequest, "multiple_files_not_supported")
				return
			}

			filename = sanitizeFilename(part.FileName())
			contentType = strings.TrimSpace(part.Header.Get("Content-Type"))
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			uploadedObjectKey = fmt.Sprintf("%s/%s/%s", datasetID, versionID, filename)
			hasher := sha256.New()
			counter := &countingWriter{}

			var reader io.Reader = io.TeeReader(part, io.MultiWriter(hasher, counter))
			validation := startValidation(validateMode, &reader)

			uploadCtx, cancel := context.WithTimeout(r.Context(), api.uploadTimeout)
			_, putErr := api.store.PutObject(
				uploadCtx,
				api.storeCfg.BucketDatasets,
				uploadedObjectKey,
				reader,
				-1,
				minio.PutObjectOptions{ContentType: contentType},
			)
			cancel()
			_ = part.Close()
			summary, validateErr := validation.wait()
			if putErr != nil {
				var maxErr *http.MaxBytesError
				if errors.As(putErr, &maxErr) {
					api.writeErrorWithDetails(w, r, http.StatusRequestEntityTooLarge, "upload_too_large", map[string]any{
						"max_bytes": api.uploadMaxBytes,
					})
					return
				}
				api.writeError(w, r, http.StatusBadRequest, "upload_failed")
				return
			}
			if validateErr != nil {
				api.removeObject(r, uploadedObjectKey)
				var violation *gamelog.Violation
				if errors.As(validateErr, &violation) {
					api.writeErrorWithDetails(w, r, http.StatusUnprocessableEntity, "schema_violation", map[string]any{
						"row":     violation.Row,
						"column":  violation.Column,
						"message": violation.Message,
					})
					return
				}
				api.writeError(w, r, http.StatusUnprocessableEntity, "schema_violation")
				return
			}
			if summary != nil {
				rowCount = summary.Rows
			}
			contentSHA256 = hex.EncodeToString(hasher.Sum(nil))
			sizeBytes = counter.n
		default:
			_ = part.Close()
		}
	}

	if uploadedObjectKey == "" {
		api.writeError(w, r, http.StatusBadRequest, "file_required")
		return
	}

	metadataMap["filename"] = filename
	metadataMap["content_type"] = contentType
	if validateMode != "" {
		metadataMap["validated"] = validateMode
	}

	ordinal, err := api.svc.NextDatasetVersionOrdinal(r.Context(), datasetID)
	if err != nil {
		api.removeObject(r, uploadedObjectKey)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	version, err := api.svc.CreateDatasetVersion(r.Context(), domain.DatasetVersion{
		ID:            versionID,
		DatasetID:     datasetID,
		Ordinal:       ordinal,
		ContentSHA256: contentSHA256,
		ObjectKey:     uploadedObjectKey,
		SizeBytes:     sizeBytes,
		RowCount:      rowCount,
	}, metadataMap, buildAuditContext(r, identity))
	if err != nil {
		api.removeObject(r, uploadedObjectKey)
		if isUniqueViolation(err) {
			api.writeError(w, r, http.StatusConflict, "duplicate_content")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Location", "/dataset-versions/"+version.ID)
	api.writeJSON(w, http.StatusCreated, toDatasetVersion(version))
}

func (api *datasetRegistryAPI) handleGetDatasetVersion(w http.ResponseWriter, r *http.Request) {
	versionID := strings.TrimSpace(r.PathValue("version_id"))
	if versionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_id_required")
		return
	}
	if api.svc == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	version, err := api.svc.GetDatasetVersion(r.Context(), versionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, toDatasetVersion(version))
}

func (api *datasetRegistryAPI) handleDownloadDatasetVersion(w http.ResponseWriter, r *http.Request) {
	versionID := strings.TrimSpace(r.PathValue("version_id"))
	if versionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_id_required")
		return
	}
	if api.svc == nil || api.store == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	version, err := api.svc.GetDatasetVersion(r.Context(), versionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	filename := metadataString(version.Metadata, "filename")
	if filename == "" {
		filename = "dataset.csv"
	}
	contentType := metadataString(version.Metadata, "content_type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := api.store.GetObject(r.Context(), api.storeCfg.BucketDatasets, version.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if version.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(version.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj)
}

func (api *datasetRegistryAPI) handleVerifyDatasetVersion(w http.ResponseWriter, r *http.Request) {
	versionID := strings.TrimSpace(r.PathValue("version_id"))
	if versionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_id_required")
		return
	}
	if api.svc == nil || api.store == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	version, err := api.svc.GetDatasetVersion(r.Context(), versionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	expected := version.ContentSHA256
	if r.ContentLength != 0 {
		var req verifyRequest
		if err := decodeJSON(r, &req); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		if strings.TrimSpace(req.ExpectedSHA256) != "" {
			expected = req.ExpectedSHA256
		}
	}
	if !integrity.ValidDigest(expected) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_digest")
		return
	}

	result, err := api.verifyObject(r.Context(), version.ObjectKey, expected)
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}

	api.svc.RecordVerification(r.Context(), versionID, result, buildAuditContext(r, identity))

	api.writeJSON(w, http.StatusOK, verifyResponse{
		VersionID:      versionID,
		Outcome:        string(result.Outcome),
		ExpectedSHA256: result.Expected,
		ActualSHA256:   result.Actual,
	})
}

// verifyObject recomputes the stored object's digest. A missing object is
// the not_found outcome, not an error.
func (api *datasetRegistryAPI) verifyObject(ctx context.Context, objectKey string, expected string) (integrity.Result, error) {
	obj, err := api.store.GetObject(ctx, api.storeCfg.BucketDatasets, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return integrity.Result{}, err
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return integrity.Result{
				Outcome:  integrity.OutcomeNotFound,
				Expected: strings.ToLower(strings.TrimSpace(expected)),
			}, nil
		}
		return integrity.Result{}, err
	}
	return integrity.VerifyReader(obj, expected)
}

func (api *datasetRegistryAPI) removeObject(r *http.Request, objectKey string) {
	if err := api.store.RemoveObject(r.Context(), api.storeCfg.BucketDatasets, objectKey, minio.RemoveObjectOptions{}); err != nil {
		api.logger.Warn("orphan object cleanup failed", "object_key", objectKey, "error", err)
	}
}

// validation runs the optional schema check concurrently with the upload
// stream. The upload reader is teed into a pipe the validator consumes; the
// validator drains the pipe after a fail-fast violation so the upload side
// never blocks.
type validation struct {
	done chan struct{}
	sum  *gamelog.Summary
	err  error
	pw   *io.PipeWriter
}

func startValidation(mode string, reader *io.Reader) *validation {
	if mode != validateModeGamelog {
		return nil
	}
	pr, pw := io.Pipe()
	v := &validation{done: make(chan struct{}), pw: pw}
	*reader = io.TeeReader(*reader, pw)
	go func() {
		defer close(v.done)
		summary, err := gamelog.ValidateCSV(pr, gamelog.DefaultSchema())
		if err != nil {
			v.err = err
		} else {
			v.sum = &summary
		}
		_, _ = io.Copy(io.Discard, pr)
	}()
	return v
}

func (v *validation) wait() (*gamelog.Summary, error) {
	if v == nil {
		return nil, nil
	}
	_ = v.pw.Close()
	<-v.done
	return v.sum, v.err
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

func toDataset(in domain.Dataset) dataset {
	metaJSON, _ := json.Marshal(in.Metadata)
	columns := in.Columns
	if columns == nil {
		columns = []string{}
	}
	return dataset{
		DatasetID:   in.ID,
		Name:        in.Name,
		Description: in.Description,
		Source:      in.Source,
		Columns:     columns,
		Metadata:    normalizeJSON(metaJSON),
		CreatedAt:   in.CreatedAt,
		CreatedBy:   in.CreatedBy,
	}
}

func toDatasetVersion(in domain.DatasetVersion) datasetVersion {
	metaJSON, _ := json.Marshal(in.Metadata)
	return datasetVersion{
		VersionID:     in.ID,
		DatasetID:     in.DatasetID,
		Ordinal:       in.Ordinal,
		ContentSHA256: in.ContentSHA256,
		ObjectKey:     in.ObjectKey,
		SizeBytes:     in.SizeBytes,
		RowCount:      in.RowCount,
		Metadata:      normalizeJSON(metaJSON),
		CreatedAt:     in.CreatedAt,
		CreatedBy:     in.CreatedBy,
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func buildAuditContext(r *http.Request, identity auth.Identity) auditContext {
	return auditContext{
		Actor:     strings.TrimSpace(identity.Subject),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Service:   "registry",
	}
}

func (api *datasetRegistryAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *datasetRegistryAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *datasetRegistryAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
		"details":    details,
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func metadataString(meta domain.Metadata, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return strings.TrimSpace(s)
}

func normalizeJSON(raw []byte) json.RawMessage {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == "/" {
		return "dataset.csv"
	}
	return base
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
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
