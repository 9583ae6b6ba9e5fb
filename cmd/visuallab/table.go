package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// previewCellWidth caps dataset preview cells; values come straight from the
// uploaded CSV and can be arbitrarily long.
const previewCellWidth = 24

const historyDetailWidth = 40

// tableColumn describes one rendered column. A zero maxWidth leaves the
// column unbounded.
type tableColumn struct {
	title    string
	align    columnAlignment
	maxWidth int
}

func columnsFor(titles []string, aligns ...columnAlignment) []tableColumn {
	cols := make([]tableColumn, len(titles))
	for i, title := range titles {
		cols[i] = tableColumn{title: title}
		if i < len(aligns) {
			cols[i].align = aligns[i]
		}
	}
	return cols
}

func renderTable(columns []tableColumn, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	// Dataset column names are shown as uploaded, not upper-cased.
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col.title
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if col.align == alignRight {
			cfg.Align = text.AlignRight
		}
		if col.maxWidth > 0 {
			cfg.WidthMax = col.maxWidth
			cfg.WidthMaxEnforcer = truncateCell
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// truncateCell shortens value to maxWidth display cells, marking the cut with
// an ellipsis.
func truncateCell(value string, maxWidth int) string {
	if maxWidth <= 0 || text.StringWidthWithoutEscSequences(value) <= maxWidth {
		return value
	}
	if maxWidth == 1 {
		return "…"
	}
	return text.Trim(value, maxWidth-1) + "…"
}
