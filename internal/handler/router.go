package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	pkglog "github.com/weiawesome/wes-meet/pkg/log"
)

// NewRouter builds the gin engine with logging, recovery and all routes.
func NewRouter(logger zerolog.Logger, trustedProxies []string, ws *WSHandler, api *HTTPHandler) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ws.RegisterRoutes(r)
	api.RegisterRoutes(r)
	return r, nil
}
