package results

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

const scoresSheet = "Scores"

var scoresHeader = []any{"Student", "Score", "Submitted at", "Feedback"}

// ExportXLSX writes the assignment's scores as a spreadsheet.
func (a *Aggregator) ExportXLSX(ctx context.Context, teacher assessment.Identity, assignmentID string, w io.Writer) error {
	entries, err := a.ScoresFor(ctx, teacher, assignmentID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, 1, scoresHeader); err != nil {
		return err
	}
	for i, e := range entries {
		feedback := ""
		if e.Feedback != nil {
			feedback = *e.Feedback
		}
		row := []any{e.StudentID, e.Score, e.SubmittedAt.UTC().Format(time.RFC3339), feedback}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	if err := f.SetSheetRow(scoresSheet, cell, &values); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return nil
}
