package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	analyzer "github.com/wichtounet/inlining-analyzer"
	"github.com/wichtounet/inlining-analyzer/internal/binelf"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// stdLogger adapts the standard log package to the binelf.Logger /
// analyzer Logger interface, printing each message through log.Printf with
// a "warning: " prefix.
type stdLogger struct{}

func (stdLogger) Warnf(format string, args ...interface{}) {
	log.Printf("warning: "+format, args...)
}

var (
	flagGraph  string
	flagConfig string
	flagFormat string
	flagTop    int
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "inlining-analyzer",
	Short:         "Mine a profiled call graph for inlining, relocation, and clustering opportunities",
	Long:          "inlining-analyzer reads a profiler's call graph export together with the application's shared objects and recommends compiler inlining, cross-library function relocation, hot-code clustering, and virtual hierarchy simplification.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagGraph == "" {
			return fmt.Errorf("--graph is required")
		}
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagGraph, "graph", "", "path to the profiler's .dot call graph export (required)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: text|json")
	rootCmd.PersistentFlags().IntVar(&flagTop, "top", 20, "number of entries each report returns")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statisticsCmd)
	rootCmd.AddCommand(issuesCmd)
}

// buildEngine reads the graph and config referenced by the persistent flags
// and runs the full enrichment/temperature pipeline. The concurrent binary
// prewarm phase observes ctx so a caller (e.g. a future server wrapper) can
// cancel a run between files.
func buildEngine(ctx context.Context) (*analyzer.Engine, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(flagGraph)
	if err != nil {
		return nil, fmt.Errorf("opening graph: %w", err)
	}
	defer f.Close()

	opts := []analyzer.Option{analyzer.WithLogger(stdLogger{})}
	for _, lib := range cfg.ProtectedLibraries {
		opts = append(opts, analyzer.WithProtectedLibrary(lib))
	}
	for _, name := range cfg.Filters {
		opts = append(opts, analyzer.WithFilter(name))
	}
	if cfg.DefaultFilters {
		opts = append(opts, analyzer.WithDefaultFilters())
	}
	if cfg.Demangled {
		opts = append(opts, analyzer.WithDemangled(true))
	}
	if cfg.FilterDuplicates {
		opts = append(opts, analyzer.WithFilterDuplicates(true))
	}
	for name, value := range cfg.Parameters {
		key, _ := params.ByName(name) // validated by loadConfig
		opts = append(opts, analyzer.WithParameter(key, value))
	}

	inspectorOpts := []binelf.Option{binelf.WithLogger(stdLogger{})}
	return analyzer.NewContext(ctx, f, inspectorOpts, opts...)
}
