package api

import (
	"net/http"

	model2 "github.com/Brunux-hub/albru-engagement/api/model"

	"github.com/gin-gonic/gin"
)

func (a Api) CreateLead(c *gin.Context) {
	var newLead model2.CreateLead
	if err := c.ShouldBindJSON(&newLead); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newLead.ValidateCreateLead(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.engagement.CreateLead(c.Request.Context(), newLead.ToLead())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetLead(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.engagement.GetLead(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
