package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/jobsync/internal/reconcile"
	"github.com/Veraticus/jobsync/internal/storage"
	"github.com/Veraticus/jobsync/internal/syncer"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidateFormat checks an --format flag value.
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format %q (want text or json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderReport writes a run report in the given format.
func RenderReport(w io.Writer, report *syncer.Report, format string) error {
	if format == FormatJSON {
		return writeJSON(w, report)
	}

	var b strings.Builder

	summary := []string{
		fmt.Sprintf("Run:          %s", report.RunID),
		fmt.Sprintf("Mode:         %s", report.Mode),
		fmt.Sprintf("Source:       %d records (%d skipped)", report.SourceRecords, report.Skipped),
		fmt.Sprintf("Sheet:        %d rows", report.DestinationRows),
		fmt.Sprintf("Unchanged:    %d", report.NoOps),
		fmt.Sprintf("Updates:      %d", report.Updates),
		fmt.Sprintf("Appends:      %d", report.Appends),
	}
	if !report.DryRun {
		summary = append(summary, fmt.Sprintf("Written:      %d", report.Applied))
	}
	summary = append(summary, SubtleStyle.Render(fmt.Sprintf("Took %s", report.Duration.Round(time.Millisecond))))

	title := ChartIcon + " Sync Report"
	if report.DryRun {
		title += " (dry run)"
	}
	b.WriteString(RenderBox(title, strings.Join(summary, "\n")))
	b.WriteString("\n")

	if report.Plan != nil && !report.Plan.Empty() {
		b.WriteString(PlanTable(report.Plan.Mutations))
		b.WriteString("\n")
	}

	switch {
	case report.Error != "":
		b.WriteString(FormatError(report.Error))
		b.WriteString("\n")
		if report.Failed != nil {
			b.WriteString(FormatWarning(fmt.Sprintf("Stopped at %s; %d writes not attempted", report.Failed, len(report.Remaining))))
			b.WriteString("\n")
		}
	case report.UpToDate():
		b.WriteString(FormatSuccess("Your sheet is up to date!"))
		b.WriteString("\n")
	case report.DryRun:
		b.WriteString(FormatInfo("Dry run: nothing was written. Run without --dry-run to apply."))
		b.WriteString("\n")
	default:
		b.WriteString(FormatSuccess(fmt.Sprintf("Applied %d changes", report.Applied)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// PlanTable renders mutations as a table.
func PlanTable(mutations []reconcile.Mutation) string {
	rows := make([][]string, 0, len(mutations))
	for _, m := range mutations {
		row := "new"
		if m.Kind == reconcile.KindUpdate {
			row = strconv.Itoa(m.Position)
		}
		rows = append(rows, []string{
			string(m.Kind),
			row,
			m.Record.Company,
			m.Record.Position,
			m.Record.Status,
			m.Record.Date,
		})
	}

	return newTable("Action", "Row", "Company", "Position", "Status", "Date").
		Rows(rows...).
		String()
}

// RenderPlan writes a plan on its own, as produced by a replay.
func RenderPlan(w io.Writer, plan *reconcile.Plan, format string) error {
	if format == FormatJSON {
		return writeJSON(w, plan)
	}

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Plan (%s): %d unchanged, %d updates, %d appends",
		plan.Mode, plan.Stats.NoOps, plan.Stats.Updates, plan.Stats.Appends)))
	b.WriteString("\n")
	if plan.Empty() {
		b.WriteString(FormatSuccess("Nothing to change"))
	} else {
		b.WriteString(PlanTable(plan.Mutations))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRuns writes a list of stored runs.
func RenderRuns(w io.Writer, runs []storage.Run, format string) error {
	if format == FormatJSON {
		if runs == nil {
			runs = []storage.Run{}
		}
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No runs recorded yet"))
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			r.Status,
			fmt.Sprintf("%d/%d/%d", r.NoOps, r.Updates, r.Appends),
			strconv.Itoa(r.Applied),
		})
	}

	_, err := fmt.Fprintln(w, newTable("Run", "When", "Mode", "Status", "Same/Upd/App", "Written").
		Rows(rows...).
		String())
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}
