// Package console contains the HTTP handlers for the agent console API:
// the chat proxy, document management proxy, and observability snapshot.
package console

import (
	"time"

	"github.com/stratumhq/agentconsole/internal/chat"
	"github.com/stratumhq/agentconsole/internal/objectstore"
	"github.com/stratumhq/agentconsole/internal/observability"
	"github.com/stratumhq/agentconsole/internal/orchestrator"
	"github.com/stratumhq/agentconsole/internal/tunnel"
)

// Handler bundles the collaborators the console endpoints call out to.
type Handler struct {
	builder      *observability.Builder
	cache        *observability.SnapshotCache
	orchestrator *orchestrator.Client
	tunnel       *tunnel.Client
	presigner    *objectstore.Presigner
	recorder     *chat.Recorder

	now func() time.Time
}

// Options wires a Handler. Presigner may be nil; the presigned-URL endpoint
// then reports the feature unavailable.
type Options struct {
	Builder      *observability.Builder
	Cache        *observability.SnapshotCache
	Orchestrator *orchestrator.Client
	Tunnel       *tunnel.Client
	Presigner    *objectstore.Presigner
	Recorder     *chat.Recorder
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		builder:      opts.Builder,
		cache:        opts.Cache,
		orchestrator: opts.Orchestrator,
		tunnel:       opts.Tunnel,
		presigner:    opts.Presigner,
		recorder:     opts.Recorder,
		now:          time.Now,
	}
}
