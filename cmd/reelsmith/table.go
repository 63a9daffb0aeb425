package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"reelsmith/internal/project"
)

// column describes one rendered table column. Numeric columns (ids, progress,
// ages) right-align so their digits line up.
type column struct {
	header  string
	numeric bool
}

// runColumns is the layout shared by every command that prints runs.
var runColumns = []column{
	{header: "ID", numeric: true},
	{header: "Project"},
	{header: "Title"},
	{header: "Status"},
	{header: "Progress", numeric: true},
	{header: "Updated", numeric: true},
}

func runRow(item *project.Item) []string {
	return []string{
		strconv.FormatInt(item.ID, 10),
		truncate(item.ProjectID, 20),
		truncate(item.Title, 32),
		statusLabel(item.Status),
		formatProgress(item.Progress),
		formatAge(item.UpdatedAt),
	}
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.header
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		tw.AppendRow(cells)
	}

	return tw.Render()
}
