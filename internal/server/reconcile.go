package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) reconcileCampaign(c *gin.Context) {
	result, err := s.reconcileSvc.ReconcileOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) runReconcile(c *gin.Context) {
	summary, err := s.reconcileSvc.ReconcileAll(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type sweepRequest struct {
	RetentionDays int `json:"retention_days"`
}

func (s *Server) sweepArchive(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	retention := s.cfg.Billing.ArchiveRetention
	if req.RetentionDays > 0 {
		retention = time.Duration(req.RetentionDays) * 24 * time.Hour
	}

	result, err := s.reconcileSvc.SweepArchive(c.Request.Context(), retention)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type intervalRequest struct {
	Interval string `json:"interval" binding:"required"`
}

func (s *Server) schedulerStatus(c *gin.Context) {
	if s.controller == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    s.controller.State(),
		"interval": s.controller.Interval().String(),
	})
}

func (s *Server) updateSchedulerInterval(c *gin.Context) {
	if s.controller == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil || interval <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.controller.UpdateInterval(interval); err != nil {
		AbortWithError(c, ErrConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    s.controller.State(),
		"interval": s.controller.Interval().String(),
	})
}
