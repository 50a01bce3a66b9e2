package domain

import (
	"errors"
	"strings"
	"time"
)

// Dataset is a registry record describing a tracked data file: where it came
// from, what columns it carries, and who registered it.
type Dataset struct {
	ID              string
	Name            string
	Description     string
	Source          string
	Columns         []string
	Metadata        Metadata
	CreatedAt       time.Time
	CreatedBy       string
	IntegritySHA256 string
}

// DatasetVersion is an immutable snapshot of a dataset's content. The
// ContentSHA256 field records the digest of the stored bytes; verification
// recomputes it from the object store.
type DatasetVersion struct {
	ID              string
	DatasetID       string
	Ordinal         int64
	ContentSHA256   string
	ObjectKey       string
	SizeBytes       int64
	RowCount        int64
	Metadata        Metadata
	CreatedAt       time.Time
	CreatedBy       string
	IntegritySHA256 string
}

func (d Dataset) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("dataset id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("dataset name is required")
	}
	return nil
}

func (v DatasetVersion) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("dataset version id is required")
	}
	if strings.TrimSpace(v.DatasetID) == "" {
		return errors.New("dataset id is required")
	}
	if strings.TrimSpace(v.ContentSHA256) == "" {
		return errors.New("content sha256 is required")
	}
	if strings.TrimSpace(v.ObjectKey) == "" {
		return errors.New("object key is required")
	}
	return nil
}
