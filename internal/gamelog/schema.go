package gamelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Schema describes the column contract for a processed gamelog CSV.
type Schema struct {
	Required []string
}

// DefaultSchema is the contract for processed player gamelog files.
func DefaultSchema() Schema {
	return Schema{
		Required: []string{"PLAYER_ID", "GAME_DATE", "MIN", "fantasy_points"},
	}
}

// Summary reports what a successful validation saw.
type Summary struct {
	Rows    int64
	Columns []string
}

// Violation identifies the first rule broken by the file. Row numbering is
// 1-based and counts the header as row 1.
type Violation struct {
	Row     int64
	Column  string
	Message string
}

func (v *Violation) Error() string {
	if v.Column == "" {
		return fmt.Sprintf("row %d: %s", v.Row, v.Message)
	}
	return fmt.Sprintf("row %d, column %s: %s", v.Row, v.Column, v.Message)
}

var dateLayouts = []string{"2006-01-02", "Jan 02, 2006", time.RFC3339}

// statColumns are the box-score columns fantasy_points is computed from.
// When all of them are present, each row's fantasy_points is cross-checked
// against the scoring formula.
var statColumns = []string{"PTS", "REB", "AST", "STL", "BLK", "TOV"}

const scoringTolerance = 0.005

// ValidateCSV streams a gamelog CSV and fails fast on the first violation:
// required columns present, PLAYER_ID a positive integer, GAME_DATE parseable
// and monotonic non-decreasing, MIN at least 4, fantasy_points a non-null
// float consistent with the scoring formula when the stat columns are
// present.
func ValidateCSV(r io.Reader, schema Schema) (Summary, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Summary{}, &Violation{Row: 1, Message: "file is empty"}
		}
		return Summary{}, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		index[name] = i
		columns = append(columns, name)
	}
	for _, required := range schema.Required {
		if _, ok := index[required]; !ok {
			return Summary{}, &Violation{Row: 1, Column: required, Message: "required column missing"}
		}
	}

	checkScoring := true
	for _, col := range statColumns {
		if _, ok := index[col]; !ok {
			checkScoring = false
			break
		}
	}

	var (
		rows     int64
		lastDate time.Time
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read row: %w", err)
		}
		rows++
		rowNum := rows + 1

		if col, ok := index["PLAYER_ID"]; ok {
			id, err := strconv.ParseInt(strings.TrimSpace(record[col]), 10, 64)
			if err != nil || id <= 0 {
				return Summary{}, &Violation{Row: rowNum, Column: "PLAYER_ID", Message: "must be a positive integer"}
			}
		}

		if col, ok := index["GAME_DATE"]; ok {
			date, err := parseGameDate(record[col])
			if err != nil {
				return Summary{}, &Violation{Row: rowNum, Column: "GAME_DATE", Message: "unparseable date"}
			}
			if !lastDate.IsZero() && date.Before(lastDate) {
				return Summary{}, &Violation{Row: rowNum, Column: "GAME_DATE", Message: "must be monotonic non-decreasing"}
			}
			lastDate = date
		}

		if col, ok := index["MIN"]; ok {
			minutes, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return Summary{}, &Violation{Row: rowNum, Column: "MIN", Message: "must be a float"}
			}
			if minutes < 4 {
				return Summary{}, &Violation{Row: rowNum, Column: "MIN", Message: "must be at least 4 minutes"}
			}
		}

		if col, ok := index["fantasy_points"]; ok {
			value := strings.TrimSpace(record[col])
			if value == "" {
				return Summary{}, &Violation{Row: rowNum, Column: "fantasy_points", Message: "must not be null"}
			}
			recorded, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Summary{}, &Violation{Row: rowNum, Column: "fantasy_points", Message: "must be a float"}
			}
			if checkScoring {
				stats := make([]float64, len(statColumns))
				for i, name := range statColumns {
					stat, err := strconv.ParseFloat(strings.TrimSpace(record[index[name]]), 64)
					if err != nil {
						return Summary{}, &Violation{Row: rowNum, Column: name, Message: "must be a float"}
					}
					stats[i] = stat
				}
				expected := FantasyPoints(StatLine{
					Points:    stats[0],
					Rebounds:  stats[1],
					Assists:   stats[2],
					Steals:    stats[3],
					Blocks:    stats[4],
					Turnovers: stats[5],
				})
				if math.Abs(recorded-expected) > scoringTolerance {
					return Summary{}, &Violation{Row: rowNum, Column: "fantasy_points", Message: "does not match the scoring formula"}
				}
			}
		}
	}

	return Summary{Rows: rows, Columns: columns}, nil
}

func parseGameDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", raw)
}
