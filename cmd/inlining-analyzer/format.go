package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wichtounet/inlining-analyzer/reports"
)

// statisticsResult and issuesResult are two of the three JSON envelopes this
// CLI produces (analyzeResult below is the third), each named after the
// command that builds it.
type statisticsResult struct {
	Command    string             `json:"command"`
	Statistics reports.Statistics `json:"statistics"`
}

type issuesResult struct {
	Command string         `json:"command"`
	Issues  reports.Issues `json:"issues"`
}

// analyzeResult is the envelope produced by the "analyze" command, which
// runs the full pipeline and reports both statistics and issues together.
type analyzeResult struct {
	Command    string             `json:"command"`
	Statistics reports.Statistics `json:"statistics"`
	Issues     reports.Issues     `json:"issues"`
}

// outputResult marshals a result to stdout in the selected format.
func outputResult(result any) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as
// an envelope; in text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"command": command, "error": err.Error()})
	return err
}

func outputResultText(result any) error {
	w := io.Writer(os.Stdout)

	switch v := result.(type) {
	case statisticsResult:
		formatStatisticsText(w, v.Statistics)
	case issuesResult:
		formatIssuesText(w, v.Issues)
	case analyzeResult:
		formatStatisticsText(w, v.Statistics)
		formatIssuesText(w, v.Issues)
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	return nil
}

func formatFunctionTable(w io.Writer, title, valueHeader string, entries []reports.FunctionEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tMODULE\t%s\n", valueHeader)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%g\n", e.Name, e.Module, e.Value)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func formatCallSiteTable(w io.Writer, title, valueHeader string, entries []reports.CallSiteEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CALL SITE\t%s\n", valueHeader)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%g\n", e.Description, e.Value)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func formatStatisticsText(w io.Writer, s reports.Statistics) {
	formatFunctionTable(w, "Biggest functions", "SIZE", s.Biggest)
	formatFunctionTable(w, "Most costly functions", "SELF COST", s.MostCostly)
	formatFunctionTable(w, "Most interesting functions", "TEMPERATURE", s.MostInteresting)
	formatFunctionTable(w, "Most called functions", "CALLS", s.MostCalled)
	formatFunctionTable(w, "Most parameterized functions", "PARAMETERS", s.MostParameterized)
	formatFunctionTable(w, "Tiniest functions", "SIZE", s.Tiniest)
	formatCallSiteTable(w, "Most called call sites", "CALLS", s.MostCalledCallSites)
	formatCallSiteTable(w, "Most interesting call sites", "TEMPERATURE", s.MostInterestingCallSites)
	formatCallSiteTable(w, "Heaviest inter-library calls", "CALLS", s.HeaviestInterLibraryCalls)
	formatCallSiteTable(w, "Heaviest virtual calls", "CALLS", s.HeaviestVirtualCalls)

	if len(s.ParetoFunctions) > 0 {
		fmt.Fprintln(w, "Functions taking 80% of the run time")
		for _, e := range s.ParetoFunctions {
			fmt.Fprintf(w, "\t%s\n", e.Name)
		}
		fmt.Fprintf(w, "%.2f%% of the functions take 80%% of the run time\n\n", s.ParetoPercent)
	}
}

func formatIssuesText(w io.Writer, issues reports.Issues) {
	if len(issues.LibraryIssues) > 0 {
		fmt.Fprintln(w, "Library issues:")
		for _, issue := range issues.LibraryIssues {
			fmt.Fprintf(w, "\tbenefit %d\n", issue.Benefit)
			for _, s := range issue.Solutions {
				fmt.Fprintf(w, "\t\t%s\n", s)
			}
		}
		fmt.Fprintln(w)
	}

	if len(issues.Clusters) > 0 {
		fmt.Fprintf(w, "There are %d clusters\n", len(issues.Clusters))
		for _, c := range issues.Clusters {
			fmt.Fprintf(w, "\tCluster of %d call sites, temperature %.4f\n", len(c.CallSites), c.Temperature)
		}
		fmt.Fprintln(w)
	}

	if len(issues.CircularDependencies) > 0 {
		fmt.Fprintf(w, "There are %d circular dependencies in the graph\n", len(issues.CircularDependencies))
		for _, dep := range issues.CircularDependencies {
			fmt.Fprintf(w, "\t%s\n", strings.Join(dep, " <-> "))
		}
		fmt.Fprintln(w)
	}

	if len(issues.HierarchyIssues) > 0 {
		fmt.Fprintln(w, "Virtual hierarchy issues:")
		for _, h := range issues.HierarchyIssues {
			fmt.Fprintf(w, "\t%s (calls = %d)\n", h.Name, h.Calls)
			fmt.Fprintf(w, "\t\t%s\n", h.Issue)
		}
		fmt.Fprintln(w)
	}

	if len(issues.OverParameterized) > 0 {
		fmt.Fprintln(w, "Functions with too many parameters:")
		for _, e := range issues.OverParameterized {
			fmt.Fprintf(w, "\t%s : %g parameters\n", e.Name, e.Value)
		}
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
