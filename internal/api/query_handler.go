package api

import (
	"net/http"
	"time"

	"ViewBench/internal/model"
	"ViewBench/internal/query"

	"github.com/gin-gonic/gin"
)

// queryInfo 查询目录中的一项
type queryInfo struct {
	ID        string            `json:"id"`
	View      string            `json:"view"`
	IndexSets map[string]string `json:"indexSets"`
	Hashes    map[string]string `json:"logicHashes"`
}

// ListQueries 五个查询及两种策略的索引/视图与逻辑指纹
// GET /api/queries
func (h *Handler) ListQueries(c *gin.Context) {
	out := make([]queryInfo, 0, len(query.IDs))
	for _, id := range query.IDs {
		info := queryInfo{ID: id, View: h.catalog.ViewOf(id), IndexSets: map[string]string{}, Hashes: map[string]string{}}
		for _, v := range []model.Variant{model.VariantBaseline, model.VariantOptimized} {
			s, err := h.catalog.Get(id, v)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			info.IndexSets[string(v)] = s.IndexSet()
			info.Hashes[string(v)] = s.LogicHash()
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"queries": out})
}

// RunQuery 执行一次查询策略（不记录指标）
// GET /api/queries/:id?variant=optimized
func (h *Handler) RunQuery(c *gin.Context) {
	variant, ok := model.ParseVariant(c.DefaultQuery("variant", string(model.VariantOptimized)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variant must be baseline or optimized"})
		return
	}
	s, err := h.catalog.Get(c.Param("id"), variant)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	out, err := s.Run(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).WithField("query", s.QueryID()).Error("RunQuery failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queryId":   s.QueryID(),
		"variant":   s.Variant(),
		"indexSet":  s.IndexSet(),
		"logicHash": s.LogicHash(),
		"ms":        float64(time.Since(start).Microseconds()) / 1000,
		"outcome":   out,
	})
}
