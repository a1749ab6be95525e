package console

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stratumhq/agentconsole/internal/observability"
)

// GetSnapshot returns the observability snapshot for the dashboard.
// GET /api/observability/snapshot?tenant=&from=&to=&bucket=5&limit=1000
//
// tenant is echoed back but does not partition the transcript; the log is
// written unpartitioned by the chat proxy.
func (h *Handler) GetSnapshot(c *gin.Context) {
	if h.builder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "observability not available"})
		return
	}

	query := observability.Query{
		Tenant: c.Query("tenant"),
		From:   observability.ParseTimeParam(c.Query("from")),
		To:     observability.ParseTimeParam(c.Query("to")),
	}
	if bucketStr := c.Query("bucket"); bucketStr != "" {
		if b, err := strconv.Atoi(bucketStr); err == nil && b > 0 {
			query.BucketMinutes = b
		}
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			query.Limit = l
		}
	}

	now := h.now()
	snapshot, err := h.cache.Get(query.CacheKey(), func() (*observability.Snapshot, error) {
		return h.builder.Build(query, now)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
