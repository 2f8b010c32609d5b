package main

import (
	"github.com/spf13/cobra"

	"github.com/wichtounet/inlining-analyzer/reports"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Print the found issues: library relocations, hot clusters, circular dependencies, virtual hierarchies",
	RunE:  runIssues,
}

func runIssues(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(cmd.Context())
	if err != nil {
		return outputError("issues", err)
	}

	issues := reports.New(engine).BuildIssues()
	return outputResult(issuesResult{Command: "issues", Issues: issues})
}
