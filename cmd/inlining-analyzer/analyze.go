package main

import (
	"github.com/spf13/cobra"

	"github.com/wichtounet/inlining-analyzer/reports"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full pipeline: read the graph and binaries, enrich, analyze, and report both statistics and issues",
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(cmd.Context())
	if err != nil {
		return outputError("analyze", err)
	}

	b := reports.New(engine)
	return outputResult(analyzeResult{
		Command:    "analyze",
		Statistics: b.BuildStatistics(flagTop),
		Issues:     b.BuildIssues(),
	})
}
