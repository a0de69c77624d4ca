package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/abakus-kids/academy/internal/quiz"
)

const (
	SheetAttempts = "Attempts"
	SheetSummary  = "Summary"
)

var attemptHeader = []interface{}{"Attempt", "Learner", "Status", "Started", "Completed", "Score", "Passed", "Answered"}

// WriteAttempts renders one row per attempt plus a summary sheet as an XLSX workbook.
func WriteAttempts(w io.Writer, q quiz.Quiz, attempts []quiz.Attempt) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), SheetAttempts)
	if err := f.SetSheetRow(SheetAttempts, "A1", &attemptHeader); err != nil {
		return err
	}
	for i, a := range attempts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			a.ID, a.UserID, string(a.Status), a.StartedAt.Format(time.RFC3339),
			formatTime(a.CompletedAt), scoreCell(a.Score), passedCell(a), len(a.Answers),
		}
		if err := f.SetSheetRow(SheetAttempts, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(SheetAttempts, "A", "B", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetAttempts, "D", "E", 22); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	s := Summarize(attempts)
	rows := [][]interface{}{
		{"Quiz", q.Title},
		{"Quiz ID", q.ID},
		{"Passing score %", q.PassingScorePercent},
		{"Attempts", s.Attempts},
		{"Learners", s.Learners},
		{"Completed", s.Completed},
		{"Expired", s.Expired},
		{"Average score", s.AverageScore},
		{"Pass rate %", s.PassRate},
	}
	for i := range rows {
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
			return err
		}
	}
	return f.Write(w)
}

type Summary struct {
	Attempts     int
	Learners     int
	Completed    int
	Expired      int
	AverageScore float64 // over completed attempts
	PassRate     float64 // percent of completed attempts that passed
}

func Summarize(attempts []quiz.Attempt) Summary {
	var s Summary
	learners := map[string]bool{}
	total := decimal.Zero
	passed := 0
	for _, a := range attempts {
		s.Attempts++
		learners[a.UserID] = true
		switch a.Status {
		case quiz.StatusCompleted:
			s.Completed++
			if a.Score != nil {
				total = total.Add(decimal.NewFromFloat(*a.Score))
			}
			if quiz.HasPassed(a) {
				passed++
			}
		case quiz.StatusExpired:
			s.Expired++
		}
	}
	s.Learners = len(learners)
	if s.Completed > 0 {
		n := decimal.NewFromInt(int64(s.Completed))
		s.AverageScore = total.Div(n).Round(2).InexactFloat64()
		s.PassRate = decimal.NewFromInt(int64(passed)).Mul(decimal.NewFromInt(100)).Div(n).Round(2).InexactFloat64()
	}
	return s
}

// SortByStart orders attempts oldest first, then by learner.
func SortByStart(attempts []quiz.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		if !attempts[i].StartedAt.Equal(attempts[j].StartedAt) {
			return attempts[i].StartedAt.Before(attempts[j].StartedAt)
		}
		return attempts[i].UserID < attempts[j].UserID
	})
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func scoreCell(s *float64) interface{} {
	if s == nil {
		return ""
	}
	return *s
}

func passedCell(a quiz.Attempt) string {
	switch {
	case a.Status != quiz.StatusCompleted:
		return ""
	case quiz.HasPassed(a):
		return "yes"
	default:
		return "no"
	}
}
