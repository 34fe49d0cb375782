// Package report renders cycles, cohorts and reconstructed state for the CLI.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"discotrack/internal/cache"
	"discotrack/internal/eventlog"
	"discotrack/internal/ingest"
	"discotrack/internal/stats"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Format selects the output encoding.
type Format string

const (
	TextOut Format = "text"
	JSONOut Format = "json"
	CSVOut  Format = "csv"
)

// ParseFormat validates an output format flag.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case TextOut, JSONOut, CSVOut:
		return f, nil
	case "":
		return TextOut, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
}

var (
	outlierColor = color.New(color.FgRed, color.Bold)
	openColor    = color.New(color.FgYellow)
	doneColor    = color.New(color.FgGreen)
	dimColor     = color.New(color.FgHiBlack)
)

const dateLayout = "2006-01-02"

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func fmtDays(d *int) string {
	if d == nil {
		return "-"
	}
	return strconv.Itoa(*d)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func classificationLabel(c stats.EndClassification) string {
	switch {
	case c.Completed():
		return doneColor.Sprint(c)
	case c == stats.NoDiscovery:
		return dimColor.Sprint(c)
	}
	return openColor.Sprint(c)
}

// WriteCohorts renders cohort buckets. Outliers are highlighted in text mode.
func WriteCohorts(w io.Writer, buckets []stats.CohortBucket, metric stats.Metric, format Format) error {
	switch format {
	case JSONOut:
		if buckets == nil {
			buckets = []stats.CohortBucket{}
		}
		return writeJSON(w, buckets)
	case CSVOut:
		rows := make([][]string, 0, len(buckets))
		for _, b := range buckets {
			rows = append(rows, []string{
				b.Key, strconv.Itoa(b.Size),
				fmtFloat(b.Stats.Min), fmtFloat(b.Stats.Q1), fmtFloat(b.Stats.Median), fmtFloat(b.Stats.Q3), fmtFloat(b.Stats.Max),
				joinInts(b.Outliers),
			})
		}
		return writeCSV(w, []string{"cohort", "size", "min", "q1", "median", "q3", "max", "outliers"}, rows)
	}

	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		outliers := "-"
		if len(b.Outliers) > 0 {
			outliers = outlierColor.Sprint(joinInts(b.Outliers))
		}
		rows = append(rows, []string{
			b.Key, strconv.Itoa(b.Size),
			fmtFloat(b.Stats.Min), fmtFloat(b.Stats.Q1), fmtFloat(b.Stats.Median), fmtFloat(b.Stats.Q3), fmtFloat(b.Stats.Max),
			outliers,
		})
	}
	if err := renderTable(w, []string{"Cohort", "N", "Min", "Q1", "Median", "Q3", "Max", "Outliers"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d cohorts, metric: %s days\n", len(buckets), metric)
	return err
}

// WriteCycles renders a list of discovery cycles.
func WriteCycles(w io.Writer, cycles []stats.DiscoveryCycle, format Format) error {
	switch format {
	case JSONOut:
		if cycles == nil {
			cycles = []stats.DiscoveryCycle{}
		}
		return writeJSON(w, cycles)
	case CSVOut:
		rows := make([][]string, 0, len(cycles))
		for _, c := range cycles {
			rows = append(rows, []string{
				c.IssueKey, c.CurrentStatus, string(c.Classification),
				fmtDate(c.StartDate), fmtDate(c.EndDate), fmtDays(c.CalendarDays), fmtDays(c.ActiveDays),
				c.CompletionPeriod, c.Complexity,
			})
		}
		return writeCSV(w, []string{"issue_key", "status", "classification", "start", "end", "calendar_days", "active_days", "period", "complexity"}, rows)
	}

	rows := make([][]string, 0, len(cycles))
	for _, c := range cycles {
		rows = append(rows, []string{
			c.IssueKey, c.CurrentStatus, classificationLabel(c.Classification),
			fmtDate(c.StartDate), fmtDate(c.EndDate), fmtDays(c.CalendarDays), fmtDays(c.ActiveDays),
			c.CompletionPeriod,
		})
	}
	return renderTable(w, []string{"Issue", "Status", "Classification", "Start", "End", "Calendar", "Active", "Period"}, rows)
}

// WriteCycle renders one cycle with its inactive spans.
func WriteCycle(w io.Writer, c stats.DiscoveryCycle, format Format) error {
	if format != TextOut {
		if format == JSONOut {
			return writeJSON(w, c)
		}
		return WriteCycles(w, []stats.DiscoveryCycle{c}, format)
	}

	if err := WriteCycles(w, []stats.DiscoveryCycle{c}, format); err != nil {
		return err
	}
	if len(c.InactiveSpans) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(c.InactiveSpans))
	for _, s := range c.InactiveSpans {
		rows = append(rows, []string{s.Start.UTC().Format(time.RFC3339), s.End.UTC().Format(time.RFC3339), strconv.Itoa(s.Days())})
	}
	return renderTable(w, []string{"Inactive from", "Until", "Days"}, rows)
}

// StateView is the reconstructed state of one issue at an instant.
type StateView struct {
	IssueKey string    `json:"issueKey"`
	At       time.Time `json:"at"`
	eventlog.ReconstructedState
}

// WriteState renders a reconstructed state.
func WriteState(w io.Writer, v StateView, format Format) error {
	switch format {
	case JSONOut:
		return writeJSON(w, v)
	case CSVOut:
		return writeCSV(w, []string{"issue_key", "at", "status", "health", "assignee"},
			[][]string{{v.IssueKey, v.At.UTC().Format(time.RFC3339), v.Status, v.Health, v.Assignee}})
	}
	_, err := fmt.Fprintf(w, "%s at %s\n  status:   %s\n  health:   %s\n  assignee: %s\n",
		v.IssueKey, v.At.UTC().Format(time.RFC3339), orDash(v.Status), orDash(v.Health), orDash(v.Assignee))
	return err
}

// WriteWorkload renders the active issues of a member.
func WriteWorkload(w io.Writer, member string, at time.Time, issues []stats.MemberIssue, format Format) error {
	switch format {
	case JSONOut:
		if issues == nil {
			issues = []stats.MemberIssue{}
		}
		return writeJSON(w, struct {
			Member string              `json:"member"`
			At     time.Time           `json:"at"`
			Issues []stats.MemberIssue `json:"issues"`
		}{member, at.UTC(), issues})
	case CSVOut:
		rows := make([][]string, 0, len(issues))
		for _, i := range issues {
			rows = append(rows, []string{i.IssueKey, i.Status, i.Health})
		}
		return writeCSV(w, []string{"issue_key", "status", "health"}, rows)
	}

	rows := make([][]string, 0, len(issues))
	for _, i := range issues {
		rows = append(rows, []string{i.IssueKey, i.Status, orDash(i.Health)})
	}
	if err := renderTable(w, []string{"Issue", "Status", "Health"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s had %d active issues at %s\n", member, len(issues), at.UTC().Format(time.RFC3339))
	return err
}

// WriteBatch renders the summary of a sync or recompute run.
func WriteBatch(w io.Writer, r ingest.BatchReport, format Format) error {
	if format == JSONOut {
		return writeJSON(w, r)
	}
	if _, err := fmt.Fprintf(w, "Processed %d issues in %v: %d changed, %d unchanged, %d skipped, %d failed\n",
		r.Processed, r.Duration.Round(time.Millisecond), r.Changed, r.Unchanged, r.Skipped, r.Failed); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(r.Failures)) {
		if _, err := fmt.Fprintf(w, "  %s %s\n", outlierColor.Sprint(key), r.Failures[key]); err != nil {
			return err
		}
	}
	return nil
}

// WriteStability renders the chart limits and any signals of a stability report.
func WriteStability(w io.Writer, r stats.StabilityReport, format Format) error {
	if format == JSONOut {
		return writeJSON(w, r)
	}
	x := r.XmR
	if _, err := fmt.Fprintf(w, "%d completed cycles (%s days): average %s, limits [%s, %s]\n",
		len(x.Values), r.Metric, fmtFloat(round2(x.Average)), fmtFloat(round2(x.LNPL)), fmtFloat(round2(x.UNPL))); err != nil {
		return err
	}
	if len(x.Signals) == 0 {
		_, err := fmt.Fprintln(w, doneColor.Sprint("No signals: discovery durations are predictable."))
		return err
	}
	rows := make([][]string, 0, len(x.Signals))
	for _, sig := range x.Signals {
		rows = append(rows, []string{sig.Key, fmtFloat(x.Values[sig.Index]), outlierColor.Sprint(sig.Type), sig.Description})
	}
	return renderTable(w, []string{"Issue", "Days", "Signal", "Detail"}, rows)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteCacheStatus renders the state of the derived-record cache.
func WriteCacheStatus(w io.Writer, st cache.Status, format Format) error {
	if format == JSONOut {
		return writeJSON(w, st)
	}
	fmtTime := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	connected := openColor.Sprint("no")
	if st.Connected {
		connected = doneColor.Sprint("yes")
	}
	return renderTable(w, []string{"Backend", "Connected", "Entries", "Oldest", "Latest"}, [][]string{{
		st.Backend, connected, strconv.Itoa(st.TotalEntries), fmtTime(st.OldestEntryTime), fmtTime(st.LastEntryTime),
	}})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
