package types

import "time"

// Grade is the recall quality a caller reports for a review (spec §4.I).
type Grade string

const (
	GradeFail Grade = "FAIL"
	GradeHard Grade = "HARD"
	GradeGood Grade = "GOOD"
	GradeEasy Grade = "EASY"
)

var validGrades = map[Grade]bool{
	GradeFail: true, GradeHard: true, GradeGood: true, GradeEasy: true,
}

// IsValidGrade reports whether g is a recognised spaced-repetition grade.
func IsValidGrade(g Grade) bool { return validGrades[g] }

// ReviewSchedule is the per-memory spaced-repetition bookkeeping (spec §3).
type ReviewSchedule struct {
	MemoryID         string
	DueAt            time.Time
	LastReviewed     *time.Time
	ReviewCount      int
	Difficulty       float64
	Stability        float64
	NextIntervalDays float64
}
