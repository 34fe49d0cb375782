// Package export writes cached discovery cycles to Parquet files for
// offline analysis (DuckDB, pandas, spreadsheets).
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"discotrack/internal/stats"

	"github.com/parquet-go/parquet-go"
)

// CycleRow is one discovery cycle.
type CycleRow struct {
	IssueKey         string     `parquet:"issue_key,snappy"`
	IssueType        string     `parquet:"issue_type,snappy"`
	CurrentStatus    string     `parquet:"current_status,snappy"`
	Assignee         *string    `parquet:"assignee,optional,snappy"`
	Complexity       *string    `parquet:"complexity,optional,snappy"`
	StartDate        *time.Time `parquet:"start_date,optional,snappy"`
	EndDate          *time.Time `parquet:"end_date,optional,snappy"`
	Classification   string     `parquet:"end_classification,snappy"`
	CalendarDays     *int32     `parquet:"calendar_days,optional,snappy"`
	ActiveDays       *int32     `parquet:"active_days,optional,snappy"`
	CompletionPeriod *string    `parquet:"completion_period,optional,snappy"`
}

// SpanRow is one inactive span of a cycle.
type SpanRow struct {
	IssueKey string    `parquet:"issue_key,snappy"`
	Start    time.Time `parquet:"start,snappy"`
	End      time.Time `parquet:"end,snappy"`
	Days     int32     `parquet:"days,snappy"`
}

// Files names the outputs written by WriteDir.
type Files struct {
	Cycles string `json:"cycles"`
	Spans  string `json:"spans"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}

// ConvertCycles flattens cycles into cycle rows and span rows.
func ConvertCycles(cycles []stats.DiscoveryCycle) ([]CycleRow, []SpanRow) {
	rows := make([]CycleRow, 0, len(cycles))
	var spans []SpanRow
	for _, c := range cycles {
		rows = append(rows, CycleRow{
			IssueKey:         c.IssueKey,
			IssueType:        c.IssueType,
			CurrentStatus:    c.CurrentStatus,
			Assignee:         optString(c.Assignee),
			Complexity:       optString(c.Complexity),
			StartDate:        c.StartDate,
			EndDate:          c.EndDate,
			Classification:   string(c.Classification),
			CalendarDays:     optInt(c.CalendarDays),
			ActiveDays:       optInt(c.ActiveDays),
			CompletionPeriod: optString(c.CompletionPeriod),
		})
		for _, s := range c.InactiveSpans {
			spans = append(spans, SpanRow{
				IssueKey: c.IssueKey,
				Start:    s.Start,
				End:      s.End,
				Days:     int32(s.Days()),
			})
		}
	}
	return rows, spans
}

func writeFile[T any](rows []T, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return file.Close()
}

// WriteDir writes cycles.parquet and inactive_spans.parquet into dir.
func WriteDir(cycles []stats.DiscoveryCycle, dir string) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create export directory: %w", err)
	}
	rows, spans := ConvertCycles(cycles)
	files := Files{
		Cycles: filepath.Join(dir, "cycles.parquet"),
		Spans:  filepath.Join(dir, "inactive_spans.parquet"),
	}
	if err := writeFile(rows, files.Cycles); err != nil {
		return Files{}, err
	}
	if err := writeFile(spans, files.Spans); err != nil {
		return Files{}, err
	}
	return files, nil
}
