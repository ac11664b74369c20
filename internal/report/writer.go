package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
)

const (
	MetricsFile = "metrics.csv"
	SummaryFile = "summary.md"
	notAvail    = "n/a"
)

// WriteCSV 每条指标记录一行
func WriteCSV(w io.Writer, records []model.RunMetric) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"queryId", "variant", "indexSet", "ms", "ts", "logicHash"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.QueryID,
			string(r.Variant),
			r.IndexSet,
			strconv.FormatFloat(r.DurationMs, 'f', -1, 64),
			r.TS.UTC().Format(time.RFC3339Nano),
			r.LogicHash,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatStats(v *VariantStats) string {
	if v == nil {
		return notAvail
	}
	s := fmt.Sprintf("%.4f (min %.4f, max %.4f, runs %d)", v.Max, v.Min, v.Max, v.Runs)
	if v.Stale() {
		s += " stale"
	}
	return s
}

// FormatSpeedup 保留两位小数；不可计算时为 n/a
func FormatSpeedup(v *float64) string {
	if v == nil {
		return notAvail
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatWorst(v *VariantStats) string {
	if v == nil {
		return notAvail
	}
	return fmt.Sprintf("%.4f", v.Max)
}

// WriteMarkdown 人类可读的汇总表
func WriteMarkdown(w io.Writer, s *Summary) error {
	var b strings.Builder
	b.WriteString("# Summary: baseline vs optimized\n\n")

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Query", "Baseline ms (max)", "Optimized ms (max)", "Speedup (baseline/opt)", "Indexes/Views"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, r := range s.Rows {
		table.Append([]string{r.QueryID, formatStats(r.Baseline), formatStats(r.Optimized), FormatSpeedup(r.Speedup()), r.IndexSet()})
	}
	table.Append([]string{"ALL (worst case)", formatWorst(s.Global.Baseline), formatWorst(s.Global.Optimized), FormatSpeedup(s.Global.Speedup()), "-"})
	table.Render()

	b.WriteString("\n## Worst-case (max) times across all runs\n\n")
	fmt.Fprintf(&b, "- Baseline worst (max ms): %s\n", formatWorst(s.Global.Baseline))
	fmt.Fprintf(&b, "- Optimized worst (max ms): %s\n", formatWorst(s.Global.Optimized))

	b.WriteString("\n## Notes\n\n")
	b.WriteString("- Each record is the worst of its timed trials after one warmup; the columns above are the worst of those records.\n")
	b.WriteString("- Speedup is baseline worst / optimized worst.\n")
	fmt.Fprintf(&b, "- Records: %s; dataset versions: %s; generated %s.\n",
		humanize.Comma(int64(s.Records)), joinOr(s.DatasetVersions, notAvail), s.GeneratedAt.UTC().Format(time.RFC3339))
	for _, r := range s.Rows {
		for _, v := range []struct {
			name  string
			stats *VariantStats
		}{{"baseline", r.Baseline}, {"optimized", r.Optimized}} {
			if v.stats.Stale() {
				fmt.Fprintf(&b, "- %s %s: logic hash changed across runs (%d versions); comparison may be stale.\n", r.QueryID, v.name, len(v.stats.LogicHashes))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func joinOr(list []string, fallback string) string {
	if len(list) == 0 {
		return fallback
	}
	return strings.Join(list, ", ")
}

// Generate 读取全部指标记录，写出 metrics.csv 与 summary.md
func Generate(ctx context.Context, store interfaces.MetricStore, dir string, logger *logrus.Logger) (*Summary, error) {
	records, err := store.ListMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取指标记录失败: %w", err)
	}
	summary := Aggregate(records, time.Now())
	if len(records) == 0 {
		logger.Warn("没有指标记录，跳过报告文件")
		return summary, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建报告目录失败: %w", err)
	}
	if err := writeFile(filepath.Join(dir, MetricsFile), func(w io.Writer) error { return WriteCSV(w, records) }); err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(dir, SummaryFile), func(w io.Writer) error { return WriteMarkdown(w, summary) }); err != nil {
		return nil, err
	}
	logger.WithField("dir", dir).Infof("报告已生成：%s、%s", MetricsFile, SummaryFile)
	return summary, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 %s 失败: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return f.Close()
}
