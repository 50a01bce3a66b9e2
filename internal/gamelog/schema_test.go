package gamelog

import (
	"errors"
	"strings"
	"testing"
)

const validCSV = `PLAYER_ID,GAME_DATE,MIN,fantasy_points
201939,2024-01-05,34.2,51.5
201939,2024-01-07,36.0,44.25
1629029,2024-01-07,38.5,60.0
`

func TestValidateCSVAccepts(t *testing.T) {
	summary, err := ValidateCSV(strings.NewReader(validCSV), DefaultSchema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Rows != 3 {
		t.Fatalf("expected 3 rows, got %d", summary.Rows)
	}
	if len(summary.Columns) != 4 || summary.Columns[0] != "PLAYER_ID" {
		t.Fatalf("unexpected columns: %v", summary.Columns)
	}
}

func TestValidateCSVViolations(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		column  string
		row     int64
	}{
		{
			name:   "missing required column",
			csv:    "PLAYER_ID,GAME_DATE,MIN\n201939,2024-01-05,34.2\n",
			column: "fantasy_points",
			row:    1,
		},
		{
			name:   "non positive player id",
			csv:    "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n0,2024-01-05,34.2,51.5\n",
			column: "PLAYER_ID",
			row:    2,
		},
		{
			name:   "unparseable date",
			csv:    "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n201939,someday,34.2,51.5\n",
			column: "GAME_DATE",
			row:    2,
		},
		{
			name:   "dates out of order",
			csv:    "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n201939,2024-01-07,34.2,51.5\n201939,2024-01-05,36.0,44.25\n",
			column: "GAME_DATE",
			row:    3,
		},
		{
			name:   "below minimum minutes",
			csv:    "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n201939,2024-01-05,2.5,51.5\n",
			column: "MIN",
			row:    2,
		},
		{
			name:   "null fantasy points",
			csv:    "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n201939,2024-01-05,34.2,\n",
			column: "fantasy_points",
			row:    2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateCSV(strings.NewReader(tt.csv), DefaultSchema())
			var violation *Violation
			if !errors.As(err, &violation) {
				t.Fatalf("expected violation, got %v", err)
			}
			if violation.Column != tt.column {
				t.Fatalf("expected column %s, got %s", tt.column, violation.Column)
			}
			if violation.Row != tt.row {
				t.Fatalf("expected row %d, got %d", tt.row, violation.Row)
			}
		})
	}
}

const statHeader = "PLAYER_ID,GAME_DATE,MIN,PTS,REB,AST,STL,BLK,TOV,fantasy_points\n"

func TestValidateCSVChecksScoringFormula(t *testing.T) {
	// 30 + 10*1.25 + 8*1.5 + 2*2 + 1*3 - 3 = 58.5
	good := statHeader + "201939,2024-01-05,34.2,30,10,8,2,1,3,58.5\n"
	if _, err := ValidateCSV(strings.NewReader(good), DefaultSchema()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := statHeader + "201939,2024-01-05,34.2,30,10,8,2,1,3,60.0\n"
	_, err := ValidateCSV(strings.NewReader(bad), DefaultSchema())
	var violation *Violation
	if !errors.As(err, &violation) {
		t.Fatalf("expected violation, got %v", err)
	}
	if violation.Column != "fantasy_points" || violation.Row != 2 {
		t.Fatalf("unexpected violation: %+v", violation)
	}
	if violation.Message != "does not match the scoring formula" {
		t.Fatalf("unexpected message: %s", violation.Message)
	}
}

func TestValidateCSVBadStatValue(t *testing.T) {
	csv := statHeader + "201939,2024-01-05,34.2,30,ten,8,2,1,3,58.5\n"
	_, err := ValidateCSV(strings.NewReader(csv), DefaultSchema())
	var violation *Violation
	if !errors.As(err, &violation) {
		t.Fatalf("expected violation, got %v", err)
	}
	if violation.Column != "REB" || violation.Row != 2 {
		t.Fatalf("unexpected violation: %+v", violation)
	}
}

func TestValidateCSVSkipsScoringWithoutStatColumns(t *testing.T) {
	// fantasy_points is taken at face value when the box-score columns are
	// not part of the file.
	csv := "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n201939,2024-01-05,34.2,999.9\n"
	if _, err := ValidateCSV(strings.NewReader(csv), DefaultSchema()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCSVEmptyFile(t *testing.T) {
	_, err := ValidateCSV(strings.NewReader(""), DefaultSchema())
	var violation *Violation
	if !errors.As(err, &violation) {
		t.Fatalf("expected violation for empty file, got %v", err)
	}
}

func TestValidateCSVAcceptsAlternateDateLayout(t *testing.T) {
	csv := "PLAYER_ID,GAME_DATE,MIN,fantasy_points\n201939,\"Jan 05, 2024\",34.2,51.5\n"
	if _, err := ValidateCSV(strings.NewReader(csv), DefaultSchema()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
