// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	failedStyle = cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// column of a report table.
type column struct {
	header string
	align  lipgloss.Position
}

// reportTable is a titled table of results where failed rows (a pass that returned an error,
// a kernel whose arguments are invalid) are shown in red.
type reportTable struct {
	title   string
	columns []column
	rows    [][]string
	failed  []bool
}

func newReportTable(title string, columns ...column) *reportTable {
	return &reportTable{title: title, columns: columns}
}

// AddRow appends a row; cells beyond the number of columns are dropped.
func (r *reportTable) AddRow(failed bool, cells ...string) {
	if len(cells) > len(r.columns) {
		cells = cells[:len(r.columns)]
	}
	r.rows = append(r.rows, cells)
	r.failed = append(r.failed, failed)
}

// NumFailed returns the number of rows marked as failed.
func (r *reportTable) NumFailed() (count int) {
	for _, failed := range r.failed {
		if failed {
			count++
		}
	}
	return
}

// Render returns the title and the table, or "" if the table has no rows.
func (r *reportTable) Render() string {
	if len(r.rows) == 0 {
		return ""
	}
	headers := make([]string, len(r.columns))
	for ii, c := range r.columns {
		headers[ii] = c.header
	}
	table := lgtable.New().
		Headers(headers...).
		Rows(r.rows...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			s := cellStyle
			if r.failed[row] {
				s = failedStyle
			} else if row%2 == 1 {
				s = s.Faint(true)
			}
			return s.Align(r.columns[col].align)
		})
	return fmt.Sprintf("%s\n%s", titleStyle.Render(r.title), table.Render())
}
