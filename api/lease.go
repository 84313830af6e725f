package api

import (
	"net/http"

	model2 "github.com/Brunux-hub/albru-engagement/api/model"

	"github.com/gin-gonic/gin"
)

func (a Api) AcquireLease(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.AcquireLease
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateAcquireLease(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	lease, err := a.engagement.AcquireLease(c.Request.Context(), id, req.Holder, req.DurationSecs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lease)
}

func (a Api) RenewLease(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.RenewLease
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateRenewLease(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	lease, err := a.engagement.RenewLease(c.Request.Context(), id, req.Holder, req.Token, req.ExtendSecs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lease)
}

func (a Api) ReleaseLease(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.ReleaseLease
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateReleaseLease(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.engagement.ReleaseLease(c.Request.Context(), id, req.Holder, req.Token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "lease released"})
}

func (a Api) GetLease(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	lease, err := a.engagement.LeaseStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if lease == nil {
		c.JSON(http.StatusOK, gin.H{"leased": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leased": true, "lease": lease})
}
