package reduce

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-analyze/bulk"
	"github.com/go-analyze/charts"
)

const topCalleeCount = 10

// FileReport summarizes the analysis of one file.
type FileReport struct {
	Path         string                   `json:"path"`
	Language     string                   `json:"language"`
	Functions    int                      `json:"eligible_functions"`
	Calls        int                      `json:"calls"`
	Candidates   int                      `json:"candidates"`
	Conflicts    []string                 `json:"conflicts,omitempty"`
	Disqualified map[DisqualifyReason]int `json:"disqualified,omitempty"`
	Callees      []string                 `json:"-"`
	Error        string                   `json:"error,omitempty"`
}

// CalleeCount is the number of candidates calling one function.
type CalleeCount struct {
	Callee string `json:"callee"`
	Count  int    `json:"count"`
}

// ReportMetrics contains the totals of a batch scan.
type ReportMetrics struct {
	GeneratedAt     time.Time                `json:"generated_at"`
	RunDuration     int64                    `json:"run_ms"`
	FileCount       int                      `json:"file_count"`
	FailedFileCount int                      `json:"failed_file_count"`
	FunctionCount   int                      `json:"eligible_function_count"`
	CallCount       int                      `json:"call_count"`
	CandidateCount  int                      `json:"candidate_count"`
	Disqualified    map[DisqualifyReason]int `json:"disqualified"`
	LanguageCounts  map[string]int           `json:"language_counts"`
	TopCallees      []CalleeCount            `json:"top_callees"`
	Files           []FileReport             `json:"files"`
}

// ScanFiles analyzes the files under root concurrently, each file in its own single threaded
// pass. Per-file failures are recorded in the report rather than aborting the scan.
func ScanFiles(ctx context.Context, pass *Pass, root string, files []SourceFile) ([]FileReport, error) {
	reports := make([]FileReport, len(files))
	eg := ErrGroupLimitCPU()
	for i, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fr := FileReport{Path: f.Path, Language: f.Language}
			result, _, err := pass.AnalyzeFile(filepath.Join(root, f.Path), f.Language)
			if err != nil {
				fr.Error = err.Error()
			} else {
				fr.Functions = result.Functions
				fr.Calls = result.Calls
				fr.Candidates = len(result.Candidates)
				fr.Conflicts = result.Conflicts
				fr.Disqualified = result.Disqualified
				for _, c := range result.Candidates {
					fr.Callees = append(fr.Callees, c.Callee)
				}
			}
			reports[i] = fr
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	failed := len(bulk.SliceFilter(func(fr FileReport) bool { return fr.Error != "" }, reports))
	if failed > 0 {
		log.Printf("%s%d of %d files failed analysis", ErrorLogPrefix, failed, len(files))
	}
	return reports, nil
}

// BuildReport aggregates file reports into ReportMetrics.
func BuildReport(startTime time.Time, files []FileReport) ReportMetrics {
	metrics := ReportMetrics{
		GeneratedAt:    time.Now().UTC(),
		RunDuration:    time.Since(startTime).Milliseconds(),
		FileCount:      len(files),
		Disqualified:   make(map[DisqualifyReason]int),
		LanguageCounts: make(map[string]int),
		Files:          files,
	}
	var callees []string
	for _, f := range files {
		if f.Error != "" {
			metrics.FailedFileCount++
			continue
		}
		metrics.FunctionCount += f.Functions
		metrics.CallCount += f.Calls
		metrics.CandidateCount += f.Candidates
		for reason, n := range f.Disqualified {
			metrics.Disqualified[reason] += n
		}
		callees = append(callees, f.Callees...)
	}
	for lang, group := range bulk.SliceToGroupsBy(func(f FileReport) string { return f.Language }, files) {
		metrics.LanguageCounts[lang] = len(group)
	}

	for callee, n := range bulk.SliceToCounts(callees) {
		metrics.TopCallees = append(metrics.TopCallees, CalleeCount{Callee: callee, Count: n})
	}
	slices.SortFunc(metrics.TopCallees, func(a, b CalleeCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Callee, b.Callee)
	})
	if len(metrics.TopCallees) > topCalleeCount {
		metrics.TopCallees = metrics.TopCallees[:topCalleeCount]
	}
	return metrics
}

// WriteToFile writes the metrics as indented JSON.
func (rm ReportMetrics) WriteToFile(path string) error {
	if path == "" {
		return nil
	}
	encoded, err := json.MarshalIndent(rm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	}
	if err := WriteFileReplace(path, encoded); err != nil {
		return fmt.Errorf("write report file failed: %w", err)
	}
	return nil
}

// WriteReportChart renders the chart in the format implied by the path extension.
func WriteReportChart(path string, metrics ReportMetrics) error {
	if path == "" {
		return nil
	}
	var outputType string
	if strings.HasSuffix(path, ".png") {
		outputType = charts.ChartOutputPNG
	} else if strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".jpeg") {
		outputType = charts.ChartOutputJPG
	} else if strings.HasSuffix(path, ".svg") {
		outputType = charts.ChartOutputSVG
	} else {
		return fmt.Errorf("unhandled chart file type: %s", path)
	}

	buf, err := RenderReportChart(outputType, metrics)
	if err != nil {
		return fmt.Errorf("render charts failed: %w", err)
	} else if err = WriteFileReplace(path, buf); err != nil {
		return fmt.Errorf("write chart file failed: %w", err)
	}
	return nil
}

// RenderReportChart renders a stacked gauge of call sites: candidates, calls filtered for
// argument mismatches, and calls to functions that are not eligible.
func RenderReportChart(outputType string, metrics ReportMetrics) ([]byte, error) {
	mismatched := metrics.Disqualified[ReasonArgumentCount] +
		metrics.Disqualified[ReasonVariadicMismatch] + metrics.Disqualified[ReasonDeferred]
	ineligible := metrics.Disqualified[ReasonNotEligible]

	p := charts.NewPainter(charts.PainterOptions{
		OutputFormat: outputType,
		Width:        800,
		Height:       160,
	})
	opt := charts.NewHorizontalBarChartOptionWithData([][]float64{
		{float64(metrics.CandidateCount)}, {float64(mismatched)}, {float64(ineligible)},
	})
	opt.StackSeries = charts.Ptr(true)
	opt.Theme = charts.GetTheme(charts.ThemeLight).
		WithSeriesColors([]charts.Color{
			charts.ColorGreenAlt1,
			charts.ColorOrangeAlt1,
			charts.ColorRed,
		})
	opt.Title.Text = fmt.Sprintf("Call sites (%d files, %d eligible functions)",
		metrics.FileCount-metrics.FailedFileCount, metrics.FunctionCount)
	opt.XAxis.Unit = axisUnitForMax(metrics.CallCount)
	opt.YAxis.Show = charts.Ptr(false)
	opt.SeriesList[0].Label.Show = charts.Ptr(true)
	opt.SeriesList[0].Label.ValueFormatter = func(f float64) string {
		if metrics.CallCount == 0 {
			return "0%"
		}
		return charts.FormatValueHumanize(100.0*f/float64(metrics.CallCount), 1, false) + "% replaceable"
	}
	if err := p.HorizontalBarChart(opt); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return p.Bytes()
}

func axisUnitForMax(val int) float64 {
	if val >= 8000 {
		return 2000
	} else if val > 2000 {
		return 1000
	} else if val >= 800 {
		return 200
	} else if val > 200 {
		return 100
	} else if val >= 80 {
		return 20
	} else if val > 20 {
		return 10
	} else if val >= 10 {
		return 2
	}
	return 1
}
