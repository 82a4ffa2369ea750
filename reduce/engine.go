package reduce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"
)

// ErrOutputExists indicates the output file is already present and Force was not set.
var ErrOutputExists = errors.New("output file exists")

// RunReplace performs a single file invocation: it writes the candidate count, or the
// rewritten source (or its diff) for the configured index. An existing output file, including
// the input itself, is only replaced when Force is set.
func RunReplace(config *Config, stdout io.Writer) error {
	if !config.Count && config.OutputFile != "" && !config.Force && FileExists(config.OutputFile) {
		return fmt.Errorf("%w: %s", ErrOutputExists, config.OutputFile)
	}

	pass, closeCache, err := config.OpenPass()
	if err != nil {
		return err
	}
	defer closeCache()

	result, src, err := pass.AnalyzeFile(config.File, config.Language)
	if err != nil {
		return err
	}
	if config.Count {
		_, err = io.WriteString(stdout, strconv.Itoa(result.Count())+"\n")
		return err
	}

	out, err := result.Transform(src, config.Index)
	if err != nil {
		return fmt.Errorf("replace candidate %d of %s failed: %w", config.Index, config.File, err)
	}
	if config.Diff {
		diff, err := UnifiedDiff(config.File, src, out)
		if err != nil {
			return fmt.Errorf("diff failed: %w", err)
		}
		out = []byte(diff)
	}
	if config.OutputFile == "" {
		_, err = stdout.Write(out)
		return err
	} else if err := WriteFileReplace(config.OutputFile, out); err != nil {
		return fmt.Errorf("write output failed: %w", err)
	}
	return nil
}

// RunScan discovers the reducible files under the configured directory, analyzes them, and
// writes the JSON and chart reports.
func RunScan(ctx context.Context, config *Config) (ReportMetrics, error) {
	startTime := time.Now()
	files, err := DiscoverFiles(config.Dir, config.Languages)
	if err != nil {
		return ReportMetrics{}, fmt.Errorf("discover files failed: %w", err)
	}
	log.Printf("Scanning %d files under %s", len(files), config.Dir)

	pass, closeCache, err := config.OpenPass()
	if err != nil {
		return ReportMetrics{}, err
	}
	defer closeCache()

	reports, err := ScanFiles(ctx, pass, config.Dir, files)
	if err != nil {
		return ReportMetrics{}, err
	}
	metrics := BuildReport(startTime, reports)
	log.Printf("Found %d candidates across %d calls and %d eligible functions",
		metrics.CandidateCount, metrics.CallCount, metrics.FunctionCount)

	if err := metrics.WriteToFile(config.ReportJsonFile); err != nil {
		return metrics, err
	} else if err := WriteReportChart(config.ReportChartsFile, metrics); err != nil {
		return metrics, err
	}
	return metrics, nil
}
