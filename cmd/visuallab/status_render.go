package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"visuallab/internal/api"
	"visuallab/internal/summary"
	"visuallab/internal/workflow"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.Und)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func stageTitle(stage workflow.Stage) string {
	return titleCaser.String(string(stage))
}

// stageTrail renders the tab strip with the active stage bracketed.
func stageTrail(active workflow.Stage) string {
	stages := workflow.Stages()
	parts := make([]string, len(stages))
	for i, stage := range stages {
		title := stageTitle(stage)
		if stage == active {
			title = "[" + title + "]"
		}
		parts[i] = title
	}
	return strings.Join(parts, " > ")
}

func renderStateReport(resp api.StateResponse, colorize bool) string {
	state := resp.State
	var lines []string

	lines = append(lines, renderSectionHeader("Workflow", colorize)...)
	lines = append(lines, renderStatusLine("Stage", statusInfo, stageTrail(state.ActiveStage), colorize))
	lines = append(lines, operationLines(state, colorize)...)
	if le := state.LastError; le != nil {
		msg := fmt.Sprintf("%s during %s (%s stage): %s", le.Kind, le.Operation, le.Stage, le.Message)
		lines = append(lines, renderStatusLine("Last error", statusError, msg, colorize))
	}
	lines = append(lines, renderStatusLine("Permitted", statusInfo, actionList(resp.Permitted), colorize))
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Dataset", colorize)...)
	if ds := state.Dataset; ds == nil {
		lines = append(lines, renderStatusLine("Dataset", statusWarn, "none uploaded", colorize))
	} else {
		lines = append(lines, renderStatusLine("Rows", statusOK, strconv.Itoa(ds.RowCount), colorize))
		lines = append(lines, renderStatusLine("Columns", statusOK, strconv.Itoa(ds.ColumnCount), colorize))
		missingKind := statusOK
		if ds.MissingValueCount > 0 {
			missingKind = statusWarn
		}
		lines = append(lines, renderStatusLine("Missing values", missingKind, strconv.Itoa(ds.MissingValueCount), colorize))
		if preview := renderPreview(*ds); preview != "" {
			lines = append(lines, preview)
		}
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Model", colorize)...)
	if m := state.Metrics; m == nil {
		lines = append(lines, renderStatusLine("Metrics", statusWarn, "not trained", colorize))
	} else {
		lines = append(lines, renderMetrics(*m))
	}
	if art := state.LastArtifact; art != nil {
		msg := fmt.Sprintf("%s (%d bytes, %s)", art.Path, art.Bytes, art.At.Local().Format(time.DateTime))
		lines = append(lines, renderStatusLine("Artifact", statusOK, msg, colorize))
	}

	return strings.Join(lines, "\n") + "\n"
}

func operationLines(state workflow.State, colorize bool) []string {
	if !state.Busy() {
		return []string{renderStatusLine("Operations", statusOK, "idle", colorize)}
	}
	var lines []string
	if state.UploadInFlight {
		lines = append(lines, renderStatusLine("Operations", statusWarn, "uploading dataset", colorize))
	}
	if state.TrainingInFlight {
		lines = append(lines, renderStatusLine("Operations", statusWarn, "training model", colorize))
	}
	if state.DownloadInFlight {
		lines = append(lines, renderStatusLine("Operations", statusWarn, "downloading artifact", colorize))
	}
	return lines
}

func actionList(actions workflow.ActionSet) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

var cellFlattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func renderPreview(ds summary.Dataset) string {
	names := ds.Columns()
	if len(names) == 0 {
		return ""
	}
	columns := make([]tableColumn, len(names))
	for i, name := range names {
		columns[i] = tableColumn{title: name, maxWidth: previewCellWidth}
		if numericColumn(ds.Preview, name) {
			columns[i].align = alignRight
		}
	}
	rows := make([][]string, 0, len(ds.Preview))
	for _, rec := range ds.Preview {
		row := make([]string, len(names))
		for i, name := range names {
			value, _ := rec.Get(name)
			row[i] = cellFlattener.Replace(summary.FormatValue(value))
		}
		rows = append(rows, row)
	}
	return renderTable(columns, rows)
}

// numericColumn reports whether every non-null preview value in the column is
// a number.
func numericColumn(records []summary.Record, name string) bool {
	seen := false
	for _, rec := range records {
		value, _ := rec.Get(name)
		switch value.(type) {
		case nil:
			continue
		case json.Number, float64, int, int64:
			seen = true
		default:
			return false
		}
	}
	return seen
}

func renderMetrics(m summary.Metrics) string {
	rows := [][]string{
		{"Accuracy", summary.FormatMetric(m.Accuracy)},
		{"Precision", summary.FormatMetric(m.Precision)},
		{"Recall", summary.FormatMetric(m.Recall)},
		{"F1 score", summary.FormatMetric(m.F1Score)},
	}
	return renderTable(columnsFor([]string{"Metric", "Value"}, alignLeft, alignRight), rows)
}

func renderHistory(ops []workflow.Operation) string {
	if len(ops) == 0 {
		return "No operations recorded\n"
	}
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		duration := ""
		if !op.FinishedAt.IsZero() {
			duration = op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond).String()
		}
		outcome := string(op.Outcome)
		if op.ErrorKind != "" {
			outcome = fmt.Sprintf("%s (%s)", outcome, op.ErrorKind)
		}
		rows = append(rows, []string{
			shortID(op.ID),
			string(op.Kind),
			strconv.FormatUint(op.Epoch, 10),
			outcome,
			op.StartedAt.Local().Format(time.DateTime),
			duration,
			op.Detail,
		})
	}
	columns := columnsFor(
		[]string{"ID", "Operation", "Epoch", "Outcome", "Started", "Duration", "Detail"},
		alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft,
	)
	columns[6].maxWidth = historyDetailWidth
	return renderTable(columns, rows) + "\n"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
