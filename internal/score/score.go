// Package score holds the single compliance-score formula. Every component
// that reports a percentage calls Compute — the formula is deliberately not
// re-implemented anywhere else, so a tuning change lands everywhere at once.
package score

import "math"

// Breakdown carries the inputs and result of a compliance-score computation.
type Breakdown struct {
	Score          float64 `json:"compliance_score"`
	OpenViolations int     `json:"open_violations"`
	Critical       int     `json:"critical"`
	High           int     `json:"high"`
	Medium         int     `json:"medium"`
	Low            int     `json:"low"`
}

// Compute derives the 0-100 compliance score from open violation counts
// relative to total rule x record coverage.
//
//	weighted = critical*4 + high*3 + medium*2 + low*1
//	score    = clamp(100 - weighted/(records*rules)*100*5, 0, 100)
//
// With no rules or no records the score is vacuously 100.0.
// Rounded to one decimal.
func Compute(totalRules, totalRecords, critical, high, medium, low int) float64 {
	if totalRules <= 0 || totalRecords <= 0 {
		return 100.0
	}
	weighted := float64(critical*4 + high*3 + medium*2 + low*1)
	maxPossible := float64(totalRules * totalRecords)
	s := 100 - (weighted/maxPossible)*100*5
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return math.Round(s*10) / 10
}
