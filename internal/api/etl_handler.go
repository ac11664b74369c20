package api

import (
	"errors"
	"net/http"

	"ViewBench/internal/service"

	"github.com/gin-gonic/gin"
)

// TriggerETL 同步执行一个 ETL 阶段；同一时间只允许一个 ETL
// POST /api/etl/:stage  (games / views / clean-years / all)
func (h *Handler) TriggerETL(c *gin.Context) {
	stage := c.Param("stage")
	valid := false
	for _, s := range service.Stages {
		if s == stage {
			valid = true
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage: " + stage, "stages": service.Stages})
		return
	}

	res, err := h.pipeline.TryRun(c.Request.Context(), stage)
	if errors.Is(err, service.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorf("ETL %s 失败: %v", stage, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}
