package console

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stratumhq/agentconsole/internal/orchestrator"
)

// PostChat forwards one conversation turn to the chat orchestrator and
// records the completed interaction in the transcript log. The append is
// fire-and-forget: it can never fail or delay the chat response.
// POST /api/chat
func (h *Handler) PostChat(c *gin.Context) {
	if h.orchestrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "chat orchestrator not configured"})
		return
	}

	var req orchestrator.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid chat request: " + err.Error()})
		return
	}
	if req.Message == "" && req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	started := h.now()
	resp, err := h.orchestrator.Respond(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrTimeout) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"detail": "chat orchestrator timed out"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread_id":    req.ThreadID,
		"text":         resp.Text,
		"route":        resp.Route,
		"metrics":      resp.Metrics,
		"telemetry":    resp.Telemetry,
		"citations":    resp.Citations,
		"used":         resp.Used,
		"sources_used": resp.SourcesUsed,
	})

	h.recorder.Record(req, resp, started)
}
