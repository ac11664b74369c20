package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ViewBench/internal/model"
	"ViewBench/internal/repository/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func metric(q string, v model.Variant, ms float64, hash string, offset int) model.RunMetric {
	set := "none"
	if v == model.VariantOptimized {
		set = "mechanic_stats_rated/idx_q1_mech"
	}
	return model.RunMetric{
		TS: t0.Add(time.Duration(offset) * time.Minute), DatasetVersion: "v1",
		QueryID: q, Variant: v, IndexSet: set, LogicHash: hash, DurationMs: ms, Trials: 5,
	}
}

func TestAggregate_MinMaxAndSpeedup(t *testing.T) {
	records := []model.RunMetric{
		metric("Q1", model.VariantBaseline, 10, "h1", 0),
		metric("Q1", model.VariantBaseline, 12, "h1", 1),
		metric("Q1", model.VariantOptimized, 2, "h2", 2),
		metric("Q1", model.VariantOptimized, 3, "h2", 3),
		metric("Q2", model.VariantBaseline, 40, "h3", 4),
	}
	s := Aggregate(records, t0)
	require.Len(t, s.Rows, 2)

	q1 := s.Rows[0]
	assert.Equal(t, "Q1", q1.QueryID)
	assert.Equal(t, 10.0, q1.Baseline.Min)
	assert.Equal(t, 12.0, q1.Baseline.Max)
	assert.Equal(t, 2, q1.Optimized.Runs)
	require.NotNil(t, q1.Speedup())
	assert.InDelta(t, 4.0, *q1.Speedup(), 1e-9)
	assert.Equal(t, "mechanic_stats_rated/idx_q1_mech", q1.IndexSet())

	q2 := s.Rows[1]
	assert.Nil(t, q2.Speedup())
	assert.Equal(t, "none", q2.IndexSet())

	assert.Equal(t, 40.0, s.Global.Baseline.Max)
	assert.Equal(t, 3.0, s.Global.Optimized.Max)
	assert.Equal(t, []string{"v1"}, s.DatasetVersions)
}

func TestAggregate_StaleLogicHash(t *testing.T) {
	s := Aggregate([]model.RunMetric{
		metric("Q3", model.VariantOptimized, 1, "old", 0),
		metric("Q3", model.VariantOptimized, 1, "new", 1),
	}, t0)
	require.Len(t, s.Rows, 1)
	assert.True(t, s.Rows[0].Optimized.Stale())
	assert.Equal(t, []string{"old", "new"}, s.Rows[0].Optimized.LogicHashes)
	assert.False(t, s.Rows[0].Baseline.Stale())
}

func TestFormatSpeedup(t *testing.T) {
	assert.Equal(t, "n/a", FormatSpeedup(nil))
	v := 3.14159
	assert.Equal(t, "3.14", FormatSpeedup(&v))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.RunMetric{metric("Q1", model.VariantBaseline, 1.5, "sha256:ab", 0)}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "queryId,variant,indexSet,ms,ts,logicHash", lines[0])
	assert.Equal(t, "Q1,baseline,none,1.5,2025-03-01T12:00:00Z,sha256:ab", lines[1])
}

func TestWriteMarkdown(t *testing.T) {
	s := Aggregate([]model.RunMetric{
		metric("Q1", model.VariantBaseline, 10, "h1", 0),
		metric("Q1", model.VariantOptimized, 2, "h2", 1),
		metric("Q2", model.VariantOptimized, 5, "a", 2),
		metric("Q2", model.VariantOptimized, 6, "b", 3),
	}, t0)
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "Baseline ms (max)")
	assert.Contains(t, out, "10.0000 (min 10.0000, max 10.0000, runs 1)")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "## Worst-case (max) times across all runs")
	assert.Contains(t, out, "- Baseline worst (max ms): 10.0000")
	assert.Contains(t, out, "- Optimized worst (max ms): 6.0000")
	assert.Contains(t, out, "Q2 optimized: logic hash changed")
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	store := memory.NewStore()
	dir := filepath.Join(t.TempDir(), "out")

	s, err := Generate(ctx, store, dir, logger)
	require.NoError(t, err)
	assert.Empty(t, s.Rows)
	_, statErr := os.Stat(filepath.Join(dir, MetricsFile))
	assert.True(t, os.IsNotExist(statErr))

	m := metric("Q4", model.VariantBaseline, 7, "h", 0)
	require.NoError(t, store.InsertMetric(ctx, &m))
	s, err = Generate(ctx, store, dir, logger)
	require.NoError(t, err)
	require.Len(t, s.Rows, 1)

	csvBytes, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)
	assert.Contains(t, string(csvBytes), "Q4,baseline,none,7,")
	md, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Q4")
}
