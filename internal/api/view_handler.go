package api

import (
	"context"
	"net/http"
	"strconv"

	"ViewBench/internal/model"

	"github.com/gin-gonic/gin"
)

// GetView 读取派生视图内容（按查询使用的顺序）
// GET /api/views/:view?limit=50
func (h *Handler) GetView(c *gin.Context) {
	view := c.Param("view")
	if !model.IsView(view) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown view: " + view, "views": model.AllViews})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	ctx := c.Request.Context()
	count, err := h.views.CountView(ctx, view)
	if err != nil {
		h.logger.WithError(err).WithField("view", view).Error("GetView failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.readView(ctx, view, limit)
	if err != nil {
		h.logger.WithError(err).WithField("view", view).Error("GetView failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": view, "count": count, "rows": rows})
}

func (h *Handler) readView(ctx context.Context, view string, limit int) (any, error) {
	switch view {
	case model.ViewPairStats:
		return h.views.TopPairStats(ctx, model.PairParams{Limit: limit})
	case model.ViewYearlyStats:
		return h.views.YearlyStats(ctx)
	case model.ViewThemeCountRank:
		return h.views.ThemeReport(ctx, limit, h.params.ThemeBuckets)
	case model.ViewRankCache:
		return h.views.TopRanks(ctx, limit)
	default:
		return h.views.TopCategoryStats(ctx, view, limit)
	}
}
