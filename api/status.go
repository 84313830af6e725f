package api

import (
	"net/http"

	model2 "github.com/Brunux-hub/albru-engagement/api/model"

	engagement "github.com/Brunux-hub/albru-engagement"
	"github.com/gin-gonic/gin"
)

func (a Api) UpdateStatus(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.UpdateStatus
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateUpdateStatus(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	lead, actions, err := a.engagement.UpdateStatus(c.Request.Context(), engagement.StatusChange{
		LeadID:          id,
		Track:           req.Track,
		Requested:       req.Status,
		Worker:          req.Worker,
		Category:        req.Category,
		Comment:         req.Comment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lead": lead, "actions": actions})
}
