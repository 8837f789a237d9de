package server

import (
	"net/http"

	campaigndomain "github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) createCampaign(c *gin.Context) {
	var req campaigndomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	campaign, err := s.campaignSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (s *Server) listCampaigns(c *gin.Context) {
	var req campaigndomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	campaigns, err := s.campaignSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (s *Server) getCampaign(c *gin.Context) {
	campaign, err := s.campaignSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (s *Server) pauseCampaign(c *gin.Context) {
	campaign, err := s.campaignSvc.Pause(c.Request.Context(), c.Param("id"), campaigndomain.PauseReasonUserRequested)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (s *Server) resumeCampaign(c *gin.Context) {
	campaign, err := s.campaignSvc.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (s *Server) archiveCampaign(c *gin.Context) {
	campaign, err := s.campaignSvc.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (s *Server) restoreCampaign(c *gin.Context) {
	campaign, err := s.campaignSvc.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}
