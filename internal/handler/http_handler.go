package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-meet/internal/config"
	"github.com/weiawesome/wes-meet/internal/service"
	"github.com/weiawesome/wes-meet/pkg/response"
)

const fallbackSTUN = "stun:stun.l.google.com:19302"

// HTTPHandler serves room creation, page routes and the JSON API.
type HTTPHandler struct {
	service    service.SignalService
	iceServers []config.ICEServerConfig
	staticDir  string
}

// NewHTTPHandler creates a new HTTP handler. An empty staticDir disables the
// page routes.
func NewHTTPHandler(svc service.SignalService, iceServers []config.ICEServerConfig, staticDir string) *HTTPHandler {
	return &HTTPHandler{
		service:    svc,
		iceServers: withFallbackSTUN(iceServers),
		staticDir:  staticDir,
	}
}

// withFallbackSTUN prepends a public STUN server unless one is configured.
func withFallbackSTUN(servers []config.ICEServerConfig) []config.ICEServerConfig {
	for _, s := range servers {
		for _, url := range s.URLs {
			if strings.HasPrefix(url, "stun:") || strings.HasPrefix(url, "stuns:") {
				return servers
			}
		}
	}
	return append([]config.ICEServerConfig{{URLs: []string{fallbackSTUN}}}, servers...)
}

// CreateRoom redirects to a freshly generated room id.
func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	c.Redirect(http.StatusFound, "/room/"+uuid.New().String())
}

// RoomPage serves the browser client for any room id.
func (h *HTTPHandler) RoomPage(c *gin.Context) {
	c.File(filepath.Join(h.staticDir, "room.html"))
}

// ICEServers returns the ICE configuration in RTCPeerConnection form.
func (h *HTTPHandler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

// GetRoom returns the roster of a live room.
func (h *HTTPHandler) GetRoom(c *gin.Context) {
	summary, ok := h.service.RoomSummary(c.Param("id"))
	if !ok {
		response.NotFound(c, "room not found")
		return
	}
	response.Success(c, summary)
}

// Stats returns coordinator counters.
func (h *HTTPHandler) Stats(c *gin.Context) {
	response.Success(c, h.service.Stats())
}

// RegisterRoutes registers the HTTP routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/create", h.CreateRoom)

	if h.staticDir != "" {
		r.GET("/room/:id", h.RoomPage)
		r.Static("/static", h.staticDir)
	}

	api := r.Group("/api")
	api.GET("/ice-servers", h.ICEServers)
	api.GET("/rooms/:id", h.GetRoom)
	api.GET("/stats", h.Stats)
}
