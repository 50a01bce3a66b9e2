package gamelog

// StatLine holds the box-score counting stats used for fantasy scoring.
type StatLine struct {
	Points    float64
	Rebounds  float64
	Assists   float64
	Steals    float64
	Blocks    float64
	Turnovers float64
}

// Fantasy scoring weights: PTS 1.0, REB 1.25, AST 1.5, STL 2.0, BLK 3.0,
// TOV -1.0.
func FantasyPoints(line StatLine) float64 {
	return line.Points*1.0 +
		line.Rebounds*1.25 +
		line.Assists*1.5 +
		line.Steals*2.0 +
		line.Blocks*3.0 +
		line.Turnovers*-1.0
}
