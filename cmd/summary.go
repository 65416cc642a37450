package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/surge-downloader/coursedl/internal/download"
	"github.com/surge-downloader/coursedl/internal/utils"
)

var (
	colorPrimary = lipgloss.Color("#bd93f9")
	colorSuccess = lipgloss.Color("#50fa7b")
	colorError   = lipgloss.Color("#ff5555")
	colorWarning = lipgloss.Color("#ffb86c")
	colorBorder  = lipgloss.Color("#44475a")

	titleStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	headerStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// printSummary renders the end-of-run totals and every failure.
func printSummary(w io.Writer, report *download.Report, runErr error) {
	c := report.Counts()

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Summary"))
	fmt.Fprintf(w, "  %s  %d item(s), %s\n", successStyle.Render("retrieved"), c.Completed, utils.ConvertBytesToHumanReadable(c.Bytes))
	fmt.Fprintf(w, "  %s    %d item(s), %d course(s)\n", warningStyle.Render("skipped"), c.Skipped, c.CoursesSkipped)
	if c.Failed > 0 {
		fmt.Fprintf(w, "  %s     %d\n", errorStyle.Render("failed"), c.Failed)
	}
	if c.CoursesAborted > 0 {
		fmt.Fprintf(w, "  %s    %d course(s)\n", errorStyle.Render("aborted"), c.CoursesAborted)
	}

	if failures := report.Failures(); len(failures) > 0 {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
			Headers("COURSE", "KIND", "ITEM", "ERROR").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, f := range failures {
			t.Row(f.CourseSlug, string(f.Kind), f.Title, f.Err.Error())
		}
		fmt.Fprintln(w, t.Render())
	}

	var pce *download.ProxyOrConnectionError
	if errors.As(runErr, &pce) {
		fmt.Fprintln(w, errorStyle.Render("Run aborted: "+pce.Error()))
	}
}

func formatBytes(n int64) string {
	if n == 0 {
		return "-"
	}
	return utils.ConvertBytesToHumanReadable(n)
}
