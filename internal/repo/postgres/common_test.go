package postgres

import (
	"testing"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
)

func TestEncodeMetadataNilBecomesEmptyObject(t *testing.T) {
	raw, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object, got %s", raw)
	}
}

func TestDecodeMetadataRoundTrip(t *testing.T) {
	raw, err := encodeMetadata(domain.Metadata{"season": "2024"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	meta, err := decodeMetadata(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta["season"] != "2024" {
		t.Fatalf("unexpected metadata: %v", meta)
	}
}

func TestDecodeMetadataEmptyInput(t *testing.T) {
	meta, err := decodeMetadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta == nil || len(meta) != 0 {
		t.Fatalf("expected empty metadata, got %v", meta)
	}
}

func TestDecodeColumns(t *testing.T) {
	columns, err := decodeColumns([]byte(`["PLAYER_ID","GAME_DATE"]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(columns) != 2 || columns[0] != "PLAYER_ID" {
		t.Fatalf("unexpected columns: %v", columns)
	}

	empty, err := decodeColumns(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty slice, got %v", empty)
	}
}

func TestNormalizeTime(t *testing.T) {
	if normalizeTime(time.Time{}).IsZero() {
		t.Fatalf("zero time must be replaced with now")
	}
	loc := time.FixedZone("PST", -8*3600)
	in := time.Date(2024, 1, 5, 12, 0, 0, 0, loc)
	if got := normalizeTime(in); got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("  ").Valid {
		t.Fatalf("blank string must be null")
	}
	v := nullIfEmpty(" x ")
	if !v.Valid || v.String != "x" {
		t.Fatalf("unexpected value: %+v", v)
	}
}
