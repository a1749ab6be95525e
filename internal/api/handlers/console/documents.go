package console

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stratumhq/agentconsole/internal/tunnel"
)

// ListDocuments returns the ingested documents from the data tunnel.
// GET /api/documents
func (h *Handler) ListDocuments(c *gin.Context) {
	if h.tunnel == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "data tunnel not configured"})
		return
	}

	docs, err := h.tunnel.List(c.Request.Context())
	if err != nil {
		h.relayTunnelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// UploadDocument forwards a multipart file upload to the data tunnel.
// POST /api/documents
func (h *Handler) UploadDocument(c *gin.Context) {
	if h.tunnel == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "data tunnel not configured"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file field is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "failed to open uploaded file"})
		return
	}
	defer f.Close()

	doc, err := h.tunnel.Upload(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		h.relayTunnelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// ReindexDocument asks the tunnel to rebuild one document's index.
// POST /api/documents/:id/reindex
func (h *Handler) ReindexDocument(c *gin.Context) {
	if h.tunnel == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "data tunnel not configured"})
		return
	}

	if err := h.tunnel.Reindex(c.Request.Context(), c.Param("id")); err != nil {
		h.relayTunnelError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reindexing"})
}

// DeleteDocument removes an ingested document.
// DELETE /api/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	if h.tunnel == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "data tunnel not configured"})
		return
	}

	if err := h.tunnel.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.relayTunnelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetDocumentURL issues a presigned download URL for preview/download.
// GET /api/documents/:id/url
func (h *Handler) GetDocumentURL(c *gin.Context) {
	if h.presigner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "object store not configured"})
		return
	}

	url, err := h.presigner.PresignGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) relayTunnelError(c *gin.Context, err error) {
	var upstream *tunnel.UpstreamError
	if errors.As(err, &upstream) {
		c.JSON(upstream.StatusCode, gin.H{"detail": upstream.Detail})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
}
