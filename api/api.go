package api

import (
	"net/http"

	"github.com/Brunux-hub/albru-engagement/api/middleware"
	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/internal/apierror"

	engagement "github.com/Brunux-hub/albru-engagement"
	"github.com/gin-gonic/gin"
)

type Api struct {
	engagement *engagement.Engagement
	router     *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/leads", a.CreateLead)
	router.GET("/leads/:id", a.GetLead)

	router.POST("/leads/:id/lease", a.AcquireLease)
	router.PUT("/leads/:id/lease", a.RenewLease)
	router.DELETE("/leads/:id/lease", a.ReleaseLease)
	router.GET("/leads/:id/lease", a.GetLease)

	router.PUT("/leads/:id/status", a.UpdateStatus)

	router.POST("/leads/:id/session", a.StartSession)
	router.DELETE("/leads/:id/session", a.EndSession)
	router.GET("/leads/:id/session", a.GetSession)
	router.POST("/leads/:id/session/heartbeat", a.Heartbeat)
	router.POST("/leads/:id/session/restore", a.RestoreSession)

	router.GET("/sessions/active", a.ActiveSessions)
	router.POST("/sessions/sync", a.SyncSessions)
	return a.router
}

func NewAPI(e *engagement.Engagement) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{engagement: e, router: r}
}

// respondError writes a service error with the status its code maps
// to. Non-API errors surface as 500s without leaking internals.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
