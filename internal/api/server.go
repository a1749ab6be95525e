// Package api assembles the gin HTTP server for the agent console.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/stratumhq/agentconsole/internal/api/handlers/console"
	"github.com/stratumhq/agentconsole/internal/chat"
	"github.com/stratumhq/agentconsole/internal/config"
	"github.com/stratumhq/agentconsole/internal/logging"
	"github.com/stratumhq/agentconsole/internal/objectstore"
	"github.com/stratumhq/agentconsole/internal/observability"
	"github.com/stratumhq/agentconsole/internal/orchestrator"
	"github.com/stratumhq/agentconsole/internal/transcript"
	"github.com/stratumhq/agentconsole/internal/tunnel"
)

// Server owns the HTTP engine and the transcript store lifecycle.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	store      *transcript.Store
}

// NewServer wires the full service from configuration. The object store is
// optional; everything else is constructed unconditionally.
func NewServer(cfg *config.Config) (*Server, error) {
	store, err := transcript.NewStore(cfg.TranscriptPath)
	if err != nil {
		return nil, fmt.Errorf("init transcript store: %w", err)
	}

	var presigner *objectstore.Presigner
	if cfg.ObjectStore.Enabled() {
		presigner, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
			Expiry:    time.Duration(cfg.ObjectStore.ExpiryMinutes) * time.Minute,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	handler := console.NewHandler(console.Options{
		Builder:      observability.NewBuilder(store),
		Cache:        observability.NewSnapshotCache(cfg.Snapshot.CacheTTL()),
		Orchestrator: orchestrator.NewClient(cfg.Orchestrator.BaseURL, cfg.Orchestrator.Timeout()),
		Tunnel:       tunnel.NewClient(cfg.Tunnel.BaseURL),
		Presigner:    presigner,
		Recorder:     chat.NewRecorder(store),
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinLogger())
	registerRoutes(engine, handler)

	return &Server{
		cfg:    cfg,
		engine: engine,
		store:  store,
	}, nil
}

func registerRoutes(engine *gin.Engine, handler *console.Handler) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	{
		api.POST("/chat", handler.PostChat)
		api.GET("/observability/snapshot", handler.GetSnapshot)

		api.GET("/documents", handler.ListDocuments)
		api.POST("/documents", handler.UploadDocument)
		api.POST("/documents/:id/reindex", handler.ReindexDocument)
		api.DELETE("/documents/:id", handler.DeleteDocument)
		api.GET("/documents/:id/url", handler.GetDocumentURL)
	}
}

// Start runs the HTTP server until Stop or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.engine,
	}
	log.Infof("agent console API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully and closes the transcript store.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	return err
}
