package ldtest

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

const maxErrorWidth = 100

// PrintFilterDescription describes which tests will be excluded from the run and why.
func PrintFilterDescription(out io.Writer, filters RegexFilters, capabilities Capabilities, allCapabilities []string) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(out)
	}

	var missingCapabilities []string
	for _, c := range allCapabilities {
		if !capabilities.Has(c) {
			missingCapabilities = append(missingCapabilities, c)
		}
	}
	if len(missingCapabilities) > 0 {
		fmt.Fprintln(out, "Some tests may be skipped because the platform does not support the following capabilities:")
		fmt.Fprintf(out, "  %s\n", strings.Join(missingCapabilities, ", "))
		fmt.Fprintln(out)
	}
}

// PrintResults writes a summary of the test run, with a table of failed tests if there were any.
func PrintResults(out io.Writer, results Results) {
	if results.OK() {
		fmt.Fprintln(out, color.GreenString("All tests passed (%d run, %d skipped)",
			len(results.Tests), len(results.Skipped())))
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Failed test", "First error"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: maxErrorWidth},
	})
	for i, f := range results.Failures {
		firstError := ""
		if len(f.Errors) > 0 {
			firstError = summarizeError(f.Errors[0])
		}
		tw.AppendRow(table.Row{i + 1, f.TestID.String(), firstError})
	}
	tw.Render()
	fmt.Fprintln(out, color.RedString("FAILED: %d of %d tests", len(results.Failures), len(results.Tests)))
}

// Assertion failures from testify span several lines; the "Error:" line is the useful one.
func summarizeError(err error) string {
	first := ""
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Error:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Error:"))
		}
		if first == "" {
			first = line
		}
	}
	return first
}
