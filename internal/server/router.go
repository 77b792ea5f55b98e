package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loykin/tracecap/internal/capture"
	"github.com/loykin/tracecap/internal/metrics"
	"github.com/loykin/tracecap/internal/sink"
)

// Router provides the capture HTTP surface.
// Endpoints:
//   POST {basePath}/log          body: {"label"?, "data"?, ...} -> appended to the log
//   GET  {basePath}/health       liveness probe for external clients
//   GET  {basePath}/api/status   controller state snapshot
//   GET  {basePath}/api/logs     query: tail=N (optional)
//   POST {basePath}/api/clear    truncates the capture log
//   POST {basePath}/api/stop     shuts the capture server down
// All routes answer CORS preflight for any origin; capture clients run
// inside arbitrary pages and processes.
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	ctl      *capture.Controller
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(ctl *capture.Controller, basePath string) *Router {
	return &Router{ctl: ctl, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), corsMiddleware())
	group := g.Group(r.basePath)
	group.POST("/log", r.handleLog)
	group.GET("/health", r.handleHealth)
	api := group.Group("/api")
	api.GET("/status", r.handleStatus)
	api.GET("/logs", r.handleLogs)
	api.POST("/clear", r.handleClear)
	api.POST("/stop", r.handleStop)
	return g
}

// corsMiddleware allows capture submissions from any origin with the
// method and header set capture clients need.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type successResp struct {
	Success bool `json:"success"`
}

func (r *Router) handleLog(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.IncRejected()
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "Invalid JSON"})
		return
	}

	if !json.Valid(body) {
		metrics.IncRejected()
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "Invalid JSON"})
		return
	}
	// Non-object payloads are still valid submissions; they just carry
	// no label or data field.
	var payload map[string]json.RawMessage
	_ = json.Unmarshal(body, &payload)

	label := "unknown"
	if raw, ok := payload["label"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			label = s
		}
	}
	// The data field when present, the whole submitted payload otherwise.
	data := json.RawMessage(body)
	if raw, ok := payload["data"]; ok {
		data = raw
	}

	rec := sink.NewRecord(label, data)
	if err := r.ctl.Append(rec); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, successResp{Success: true})
}

func (r *Router) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.Status())
}

func (r *Router) handleLogs(c *gin.Context) {
	tail := 0
	if ts := c.Query("tail"); ts != "" {
		n, err := strconv.Atoi(ts)
		if err != nil || n < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "tail must be a non-negative integer"})
			return
		}
		tail = n
	}
	recs, err := r.ctl.ReadLogs(tail)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, recs)
}

func (r *Router) handleClear(c *gin.Context) {
	if err := r.ctl.ClearLogs(); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, successResp{Success: true})
}

func (r *Router) handleStop(c *gin.Context) {
	// The response must leave before the listener goes away.
	r.ctl.StopAsync()
	writeJSON(c, http.StatusOK, successResp{Success: true})
}
