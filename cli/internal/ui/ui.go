// Package ui renders CLI output: styled messages, query results as tables,
// and markdown help blocks.
package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/clinicdesk/localbase/runtime/client"
	"github.com/clinicdesk/localbase/runtime/types"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	rowCountPrinter = color.New(color.FgGreen)
	watchPrinter    = color.New(color.FgCyan, color.Bold)
)

// PrintHeader prints a boxed header
func PrintHeader(title string, subtitle string) {
	width := 80
	if w := pterm.GetTerminalWidth(); w > 0 {
		width = w
	}

	header := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Center,
				TitleStyle.Render(title),
				SecondaryStyle.Render(subtitle),
			),
		)

	fmt.Println(header)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(SuccessStyle.Render("✓ " + message))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+message))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(WarningStyle.Render("⚠ " + message))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(InfoStyle.Render("ℹ " + message))
}

// PrintWatch prints a watch-mode status line
func PrintWatch(format string, args ...interface{}) {
	watchPrinter.Printf("◉ "+format+"\n", args...)
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("  • %s\n", item)
	}
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Print(out)
	return nil
}

// PrintBox prints content in a box
func PrintBox(title string, content string) {
	width := 80
	if w := pterm.GetTerminalWidth(); w > 0 {
		width = w
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Width(width).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				TitleStyle.Render(title),
				content,
			),
		)

	fmt.Println(box)
}

// Spinner starts a spinner and returns it
func Spinner(message string) *pterm.SpinnerPrinter {
	spinner, _ := pterm.DefaultSpinner.WithText(message).Start()
	return spinner
}

// RenderResult prints a query result: rows as a table, counts and errors
// styled.
func RenderResult(res *client.Result) {
	if res.Error != nil {
		if res.Error.Code != "" {
			PrintError("%s (%s)", res.Error.Message, res.Error.Code)
		} else {
			PrintError("%s", res.Error.Message)
		}
		return
	}

	if res.Count != nil {
		PrintInfo("count: %d", *res.Count)
	}

	switch data := res.Data.(type) {
	case nil:
		if res.Count == nil {
			PrintSuccess("done")
		}
	case types.Row:
		renderRows([]types.Row{data})
	case []types.Row:
		if len(data) == 0 {
			fmt.Println(SecondaryStyle.Render("no rows"))
			return
		}
		renderRows(data)
	default:
		// Shapes produced outside the façade fall back to JSON.
		encoded, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			PrintError("%v", err)
			return
		}
		fmt.Println(string(encoded))
	}
}

func renderRows(rows []types.Row) {
	columns := columnsOf(rows)

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, column := range columns {
			line[i] = formatCell(row[column])
		}
		cells = append(cells, line)
	}

	PrintTable(columns, cells)
	rowCountPrinter.Printf("%d row(s)\n", len(rows))
}

// columnsOf returns the union of the row keys: id first, stamps last, the
// rest alphabetical.
func columnsOf(rows []types.Row) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	rank := func(name string) int {
		switch name {
		case "id":
			return 0
		case "created_at", "updated_at":
			return 2
		default:
			return 1
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		if rank(columns[i]) != rank(columns[j]) {
			return rank(columns[i]) < rank(columns[j])
		}
		return columns[i] < columns[j]
	})
	return columns
}

const cellLimit = 48

func formatCell(v any) string {
	if v == nil {
		return ""
	}

	var text string
	switch value := v.(type) {
	case string:
		text = value
	case map[string]any, []any, types.Row, []types.Row:
		encoded, err := json.Marshal(value)
		if err != nil {
			text = fmt.Sprintf("%v", value)
		} else {
			text = string(encoded)
		}
	default:
		text = fmt.Sprintf("%v", value)
	}

	runes := []rune(text)
	if len(runes) > cellLimit {
		return string(runes[:cellLimit-1]) + "…"
	}
	return text
}
