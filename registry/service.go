package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/integrity"
	"github.com/gamelog-labs/gamelog-go/internal/platform/auditlog"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type auditContext struct {
	Actor     string
	RequestID string
	IP        net.IP
	UserAgent string
	Path      string
	Service   string
}

type datasetService struct {
	datasets repo.DatasetRepository
	audit    auditlog.QueryRower
	now      func() time.Time
}

func newDatasetService(datasets repo.DatasetRepository, audit auditlog.QueryRower) *datasetService {
	return &datasetService{
		datasets: datasets,
		audit:    audit,
		now:      time.Now,
	}
}

func (s *datasetService) CreateDataset(ctx context.Context, name, description, source string, columns []string, metadata map[string]any, auditCtx auditContext) (domain.Dataset, error) {
	if s == nil || s.datasets == nil {
		return domain.Dataset{}, fmt.Errorf("dataset service not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Dataset{}, fmt.Errorf("dataset name is required")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	if columns == nil {
		columns = []string{}
	}

	now := s.now().UTC()
	datasetID := uuid.NewString()

	type integrityInput struct {
		DatasetID   string         `json:"dataset_id"`
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Source      string         `json:"source,omitempty"`
		Columns     []string       `json:"columns"`
		Metadata    map[string]any `json:"metadata"`
		CreatedAt   time.Time      `json:"created_at"`
		CreatedBy   string         `json:"created_by"`
	}
	integritySum, err := integrity.RecordSHA256(integrityInput{
		DatasetID:   datasetID,
		Name:        name,
		Description: description,
		Source:      source,
		Columns:     columns,
		Metadata:    metadata,
		CreatedAt:   now,
		CreatedBy:   auditCtx.Actor,
	})
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("integrity: %w", err)
	}

	dataset := domain.Dataset{
		ID:              datasetID,
		Name:            name,
		Description:     strings.TrimSpace(description),
		Source:          strings.TrimSpace(source),
		Columns:         columns,
		Metadata:        domain.Metadata(metadata),
		CreatedAt:       now,
		CreatedBy:       auditCtx.Actor,
		IntegritySHA256: integritySum,
	}
	if err := s.datasets.CreateDataset(ctx, dataset); err != nil {
		return domain.Dataset{}, err
	}
	s.appendAudit(ctx, "dataset.create", "dataset", datasetID, auditCtx, map[string]any{
		"dataset_id": datasetID,
		"name":       name,
		"source":     source,
	})
	return dataset, nil
}

func (s *datasetService) GetDataset(ctx context.Context, datasetID string) (domain.Dataset, error) {
	if s == nil || s.datasets == nil {
		return domain.Dataset{}, fmt.Errorf("dataset service not initialized")
	}
	return s.datasets.GetDataset(ctx, datasetID)
}

func (s *datasetService) ListDatasets(ctx context.Context, limit int) ([]domain.Dataset, error) {
	if s == nil || s.datasets == nil {
		return nil, fmt.Errorf("dataset service not initialized")
	}
	return s.datasets.ListDatasets(ctx, repo.DatasetFilter{Limit: limit})
}

func (s *datasetService) NextDatasetVersionOrdinal(ctx context.Context, datasetID string) (int64, error) {
	if s == nil || s.datasets == nil {
		return 0, fmt.Errorf("dataset service not initialized")
	}
	return s.datasets.NextDatasetVersionOrdinal(ctx, datasetID)
}

func (s *datasetService) CreateDatasetVersion(ctx context.Context, version domain.DatasetVersion, metadata map[string]any, auditCtx auditContext) (domain.DatasetVersion, error) {
	if s == nil || s.datasets == nil {
		return domain.DatasetVersion{}, fmt.Errorf("dataset service not initialized")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	now := s.now().UTC()
	type integrityInput struct {
		VersionID     string         `json:"version_id"`
		DatasetID     string         `json:"dataset_id"`
		Ordinal       int64          `json:"ordinal"`
		ContentSHA256 string         `json:"content_sha256"`
		ObjectKey     string         `json:"object_key"`
		SizeBytes     int64          `json:"size_bytes,omitempty"`
		RowCount      int64          `json:"row_count,omitempty"`
		Metadata      map[string]any `json:"metadata"`
		CreatedAt     time.Time      `json:"created_at"`
		CreatedBy     string         `json:"created_by"`
	}
	integritySum, err := integrity.RecordSHA256(integrityInput{
		VersionID:     version.ID,
		DatasetID:     version.DatasetID,
		Ordinal:       version.Ordinal,
		ContentSHA256: version.ContentSHA256,
		ObjectKey:     version.ObjectKey,
		SizeBytes:     version.SizeBytes,
		RowCount:      version.RowCount,
		Metadata:      metadata,
		CreatedAt:     now,
		CreatedBy:     auditCtx.Actor,
	})
	if err != nil {
		return domain.DatasetVersion{}, fmt.Errorf("integrity: %w", err)
	}

	version.Metadata = domain.Metadata(metadata)
	version.CreatedAt = now
	version.CreatedBy = auditCtx.Actor
	version.IntegritySHA256 = integritySum

	if err := s.datasets.CreateDatasetVersion(ctx, version); err != nil {
		return domain.DatasetVersion{}, err
	}
	s.appendAudit(ctx, "dataset_version.create", "dataset_version", version.ID, auditCtx, map[string]any{
		"dataset_id":         version.DatasetID,
		"dataset_version_id": version.ID,
		"ordinal":            version.Ordinal,
		"content_sha256":     version.ContentSHA256,
		"object_key":         version.ObjectKey,
		"size_bytes":         version.SizeBytes,
		"row_count":          version.RowCount,
	})
	return version, nil
}

func (s *datasetService) GetDatasetVersion(ctx context.Context, versionID string) (domain.DatasetVersion, error) {
	if s == nil || s.datasets == nil {
		return domain.DatasetVersion{}, fmt.Errorf("dataset service not initialized")
	}
	return s.datasets.GetDatasetVersion(ctx, versionID)
}

func (s *datasetService) ListDatasetVersions(ctx context.Context, datasetID string, limit int) ([]domain.DatasetVersion, error) {
	if s == nil || s.datasets == nil {
		return nil, fmt.Errorf("dataset service not initialized")
	}
	return s.datasets.ListDatasetVersions(ctx, repo.DatasetVersionFilter{DatasetID: datasetID, Limit: limit})
}

// RecordVerification audits an integrity verification outcome.
func (s *datasetService) RecordVerification(ctx context.Context, versionID string, result integrity.Result, auditCtx auditContext) {
	if s == nil {
		return
	}
	s.appendAudit(ctx, "dataset_version.verify", "dataset_version", versionID, auditCtx, map[string]any{
		"dataset_version_id": versionID,
		"outcome":            string(result.Outcome),
		"expected_sha256":    result.Expected,
		"actual_sha256":      result.Actual,
	})
}

func (s *datasetService) appendAudit(ctx context.Context, action, resourceType, resourceID string, auditCtx auditContext, payload map[string]any) {
	if s.audit == nil {
		return
	}
	payload["service"] = auditCtx.Service
	payload["request_path"] = auditCtx.Path
	_, _ = auditlog.Insert(ctx, s.audit, auditlog.Event{
		OccurredAt:   s.now().UTC(),
		Actor:        auditCtx.Actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    auditCtx.RequestID,
		IP:           auditCtx.IP,
		UserAgent:    auditCtx.UserAgent,
		Payload:      payload,
	})
}
