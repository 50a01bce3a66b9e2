package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type DatasetStore struct {
	db DB
}

func NewDatasetStore(db DB) *DatasetStore {
	if db == nil {
		return nil
	}
	return &DatasetStore{db: db}
}

func (s *DatasetStore) CreateDataset(ctx context.Context, dataset domain.Dataset) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("dataset store not initialized")
	}
	if err := dataset.Validate(); err != nil {
		return err
	}
	if err := requireIntegrity(dataset.IntegritySHA256); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(dataset.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	columnsJSON, err := encodeColumns(dataset.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO datasets (
			dataset_id,
			name,
			description,
			source,
			columns,
			metadata,
			created_at,
			created_by,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		strings.TrimSpace(dataset.ID),
		strings.TrimSpace(dataset.Name),
		nullIfEmpty(dataset.Description),
		nullIfEmpty(dataset.Source),
		columnsJSON,
		metadataJSON,
		normalizeTime(dataset.CreatedAt),
		nullIfEmpty(dataset.CreatedBy),
		strings.TrimSpace(dataset.IntegritySHA256),
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

const selectDatasetColumns = `dataset_id, name, description, source, columns, metadata, created_at, created_by, integrity_sha256`

func (s *DatasetStore) GetDataset(ctx context.Context, id string) (domain.Dataset, error) {
	if s == nil || s.db == nil {
		return domain.Dataset{}, fmt.Errorf("dataset store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Dataset{}, fmt.Errorf("dataset id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectDatasetColumns+` FROM datasets WHERE dataset_id = $1`,
		id,
	)
	return scanDataset(row)
}

func (s *DatasetStore) ListDatasets(ctx context.Context, filter repo.DatasetFilter) ([]domain.Dataset, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("dataset store not initialized")
	}
	clauses := make([]string, 0, 1)
	args := make([]any, 0, 2)
	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}

	query := `SELECT ` + selectDatasetColumns + ` FROM datasets`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]domain.Dataset, 0)
	for rows.Next() {
		dataset, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return datasets, nil
}

func (s *DatasetStore) CreateDatasetVersion(ctx context.Context, version domain.DatasetVersion) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("dataset store not initialized")
	}
	if err := version.Validate(); err != nil {
		return err
	}
	if err := requireIntegrity(version.IntegritySHA256); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(version.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO dataset_versions (
			version_id,
			dataset_id,
			ordinal,
			content_sha256,
			object_key,
			size_bytes,
			row_count,
			metadata,
			created_at,
			created_by,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		strings.TrimSpace(version.ID),
		strings.TrimSpace(version.DatasetID),
		version.Ordinal,
		strings.ToLower(strings.TrimSpace(version.ContentSHA256)),
		strings.TrimSpace(version.ObjectKey),
		version.SizeBytes,
		version.RowCount,
		metadataJSON,
		normalizeTime(version.CreatedAt),
		nullIfEmpty(version.CreatedBy),
		strings.TrimSpace(version.IntegritySHA256),
	)
	if err != nil {
		return fmt.Errorf("insert dataset version: %w", err)
	}
	return nil
}

const selectDatasetVersionColumns = `version_id, dataset_id, ordinal, content_sha256, object_key, size_bytes, row_count, metadata, created_at, created_by, integrity_sha256`

func (s *DatasetStore) GetDatasetVersion(ctx context.Context, id string) (domain.DatasetVersion, error) {
	if s == nil || s.db == nil {
		return domain.DatasetVersion{}, fmt.Errorf("dataset store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DatasetVersion{}, fmt.Errorf("dataset version id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectDatasetVersionColumns+` FROM dataset_versions WHERE version_id = $1`,
		id,
	)
	return scanDatasetVersion(row)
}

func (s *DatasetStore) ListDatasetVersions(ctx context.Context, filter repo.DatasetVersionFilter) ([]domain.DatasetVersion, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("dataset store not initialized")
	}
	datasetID := strings.TrimSpace(filter.DatasetID)
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is required")
	}
	args := []any{datasetID}
	query := `SELECT ` + selectDatasetVersionColumns + ` FROM dataset_versions WHERE dataset_id = $1 ORDER BY ordinal DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dataset versions: %w", err)
	}
	defer rows.Close()

	versions := make([]domain.DatasetVersion, 0)
	for rows.Next() {
		version, err := scanDatasetVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dataset versions: %w", err)
	}
	return versions, nil
}

func (s *DatasetStore) NextDatasetVersionOrdinal(ctx context.Context, datasetID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("dataset store not initialized")
	}
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return 0, fmt.Errorf("dataset id is required")
	}
	var next int64
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM dataset_versions WHERE dataset_id = $1`,
		datasetID,
	)
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("next dataset version ordinal: %w", err)
	}
	return next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(scanner rowScanner) (domain.Dataset, error) {
	var dataset domain.Dataset
	var description sql.NullString
	var source sql.NullString
	var createdBy sql.NullString
	var columnsJSON []byte
	var metadataJSON []byte
	if err := scanner.Scan(
		&dataset.ID,
		&dataset.Name,
		&description,
		&source,
		&columnsJSON,
		&metadataJSON,
		&dataset.CreatedAt,
		&createdBy,
		&dataset.IntegritySHA256,
	); err != nil {
		return domain.Dataset{}, handleNotFound(err)
	}
	dataset.Description = description.String
	dataset.Source = source.String
	dataset.CreatedBy = createdBy.String
	columns, err := decodeColumns(columnsJSON)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("decode columns: %w", err)
	}
	dataset.Columns = columns
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("decode metadata: %w", err)
	}
	dataset.Metadata = metadata
	dataset.CreatedAt = dataset.CreatedAt.UTC()
	return dataset, nil
}

func scanDatasetVersion(scanner rowScanner) (domain.DatasetVersion, error) {
	var version domain.DatasetVersion
	var createdBy sql.NullString
	var metadataJSON []byte
	if err := scanner.Scan(
		&version.ID,
		&version.DatasetID,
		&version.Ordinal,
		&version.ContentSHA256,
		&version.ObjectKey,
		&version.SizeBytes,
		&version.RowCount,
		&metadataJSON,
		&version.CreatedAt,
		&createdBy,
		&version.IntegritySHA256,
	); err != nil {
		return domain.DatasetVersion{}, handleNotFound(err)
	}
	version.CreatedBy = createdBy.String
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.DatasetVersion{}, fmt.Errorf("decode metadata: %w", err)
	}
	version.Metadata = metadata
	version.CreatedAt = version.CreatedAt.UTC()
	return version, nil
}
