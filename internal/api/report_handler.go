package api

import (
	"net/http"
	"time"

	"ViewBench/internal/report"

	"github.com/gin-gonic/gin"
)

type variantJSON struct {
	Runs     int     `json:"runs"`
	MinMs    float64 `json:"minMs"`
	MaxMs    float64 `json:"maxMs"`
	IndexSet string  `json:"indexSet"`
	Stale    bool    `json:"stale"`
}

type reportRowJSON struct {
	QueryID   string       `json:"queryId"`
	Baseline  *variantJSON `json:"baseline"`
	Optimized *variantJSON `json:"optimized"`
	Speedup   string       `json:"speedup"`
	IndexSet  string       `json:"indexSet"`
}

func toVariantJSON(v *report.VariantStats) *variantJSON {
	if v == nil {
		return nil
	}
	return &variantJSON{Runs: v.Runs, MinMs: v.Min, MaxMs: v.Max, IndexSet: v.IndexSet, Stale: v.Stale()}
}

func toRowJSON(r report.Row) reportRowJSON {
	return reportRowJSON{
		QueryID:   r.QueryID,
		Baseline:  toVariantJSON(r.Baseline),
		Optimized: toVariantJSON(r.Optimized),
		Speedup:   report.FormatSpeedup(r.Speedup()),
		IndexSet:  r.IndexSet(),
	}
}

// GetReport 由全部指标记录汇总出的对比表
// GET /api/report
func (h *Handler) GetReport(c *gin.Context) {
	records, err := h.metrics.ListMetrics(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("GetReport failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s := report.Aggregate(records, time.Now())
	rows := make([]reportRowJSON, 0, len(s.Rows))
	for _, r := range s.Rows {
		rows = append(rows, toRowJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"records":         s.Records,
		"datasetVersions": s.DatasetVersions,
		"rows":            rows,
		"worst":           toRowJSON(s.Global),
	})
}
