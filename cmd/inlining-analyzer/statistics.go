package main

import (
	"github.com/spf13/cobra"

	"github.com/wichtounet/inlining-analyzer/reports"
)

var statisticsCmd = &cobra.Command{
	Use:   "statistics",
	Short: "Print the descriptive reports: biggest, costliest, hottest, most-called functions and call sites",
	RunE:  runStatistics,
}

func runStatistics(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(cmd.Context())
	if err != nil {
		return outputError("statistics", err)
	}

	stats := reports.New(engine).BuildStatistics(flagTop)
	return outputResult(statisticsResult{Command: "statistics", Statistics: stats})
}
