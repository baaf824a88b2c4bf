package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorAccent = lipgloss.Color("#3AA99F")
	colorText   = lipgloss.Color("#FFFCF0")
	colorRed    = lipgloss.Color("#D14D41")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cellStyle     = lipgloss.NewStyle().Foreground(colorText)
	borderStyle   = lipgloss.NewStyle().Foreground(colorBorder)
	negativeStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// Separator is a row that renders as a horizontal rule.
var Separator = []string{"---"}

// Table is a bordered text table. The first column is left aligned and the
// others right aligned, which suits label/amount listings.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders title inside a rounded box.
func RenderTitle(title string) string {
	return titleStyle.Render(title)
}

// RenderNegative highlights a value that went below zero.
func RenderNegative(s string) string {
	return negativeStyle.Render(s)
}

// RenderTable renders t with box-drawing borders. Widths are measured before
// styling so colour codes never skew the alignment.
func RenderTable(t Table) string {
	cols := len(t.Headers)
	for _, row := range t.Rows {
		if !isSeparator(row) && len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	measure := func(row []string) {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.Headers)
	for _, row := range t.Rows {
		if !isSeparator(row) {
			measure(row)
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteByte('\n')
	}
	b.WriteString(rule(widths, "╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(line(widths, t.Headers, headerStyle))
		b.WriteString(rule(widths, "├", "┼", "┤"))
	}
	for _, row := range t.Rows {
		if isSeparator(row) {
			b.WriteString(rule(widths, "├", "┼", "┤"))
			continue
		}
		b.WriteString(line(widths, row, cellStyle))
	}
	b.WriteString(rule(widths, "╰", "┴", "╯"))
	return b.String()
}

func isSeparator(row []string) bool {
	return len(row) == 1 && row[0] == Separator[0]
}

func rule(widths []int, left, mid, right string) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return borderStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
}

func line(widths []int, row []string, style lipgloss.Style) string {
	var b strings.Builder
	bar := borderStyle.Render("│")
	b.WriteString(bar)
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		pad := strings.Repeat(" ", w-lipgloss.Width(cell))
		if i == 0 {
			b.WriteString(style.Render(fmt.Sprintf(" %s%s ", cell, pad)))
		} else {
			b.WriteString(style.Render(fmt.Sprintf(" %s%s ", pad, cell)))
		}
		b.WriteString(bar)
	}
	b.WriteByte('\n')
	return b.String()
}
