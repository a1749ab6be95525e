// Package chat turns completed chat interactions into transcript records.
package chat

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"github.com/tiktoken-go/tokenizer"

	"github.com/stratumhq/agentconsole/internal/orchestrator"
	"github.com/stratumhq/agentconsole/internal/transcript"
)

// Recorder builds the transcript line for one interaction and hands it to the
// store's append queue. Recording is fire-and-forget: failures are logged and
// swallowed, never surfaced to the chat caller.
type Recorder struct {
	store *transcript.Store
	codec tokenizer.Codec
}

func NewRecorder(store *transcript.Store) *Recorder {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Estimation is a fallback; token fields just stay absent.
		log.WithError(err).Warn("token estimator unavailable")
	}
	return &Recorder{store: store, codec: codec}
}

// Record enqueues one transcript line for a completed interaction.
func (r *Recorder) Record(req orchestrator.ChatRequest, resp *orchestrator.ChatResponse, started time.Time) {
	if r == nil || r.store == nil || resp == nil {
		return
	}

	line, err := r.buildLine(req, resp, started)
	if err != nil {
		log.WithError(err).Warn("failed to build transcript record")
		return
	}
	r.store.Enqueue(line)
}

func (r *Recorder) buildLine(req orchestrator.ChatRequest, resp *orchestrator.ChatResponse, started time.Time) (string, error) {
	line := "{}"
	set := func(path string, value any) error {
		next, err := sjson.Set(line, path, value)
		if err != nil {
			return err
		}
		line = next
		return nil
	}

	if err := set("ts", started.UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}
	query := req.Query
	if query == "" {
		query = req.Message
	}
	if err := set("query", query); err != nil {
		return "", err
	}

	latencyMs := float64(time.Since(started).Milliseconds())
	if resp.Metrics.LatencyMs != nil {
		latencyMs = *resp.Metrics.LatencyMs
	}
	if err := set("metrics.latency_ms", latencyMs); err != nil {
		return "", err
	}

	tokensIn := resp.Metrics.TokensIn
	if tokensIn == nil {
		tokensIn = r.estimate(req.Message)
	}
	tokensOut := resp.Metrics.TokensOut
	if tokensOut == nil {
		tokensOut = r.estimate(resp.Text)
	}
	if tokensIn != nil {
		if err := set("metrics.tokens_in", *tokensIn); err != nil {
			return "", err
		}
	}
	if tokensOut != nil {
		if err := set("metrics.tokens_out", *tokensOut); err != nil {
			return "", err
		}
	}
	if resp.Metrics.CostUSD != nil {
		if err := set("metrics.cost_usd", *resp.Metrics.CostUSD); err != nil {
			return "", err
		}
	}
	if resp.Metrics.Model != "" {
		if err := set("metrics.model", resp.Metrics.Model); err != nil {
			return "", err
		}
	}
	if resp.Route != "" {
		if err := set("route", resp.Route); err != nil {
			return "", err
		}
	}

	if len(resp.Telemetry) > 0 {
		next, err := sjson.SetRaw(line, "telemetry", string(resp.Telemetry))
		if err != nil {
			return "", err
		}
		line = next
	}
	if len(resp.Citations) > 0 {
		next, err := sjson.SetRaw(line, "citations", string(resp.Citations))
		if err != nil {
			return "", err
		}
		line = next
	}

	return line, nil
}

// estimate approximates a token count from text when the orchestrator omitted
// one, so token charts still see the interaction.
func (r *Recorder) estimate(text string) *float64 {
	if r.codec == nil || text == "" {
		return nil
	}
	ids, _, err := r.codec.Encode(text)
	if err != nil {
		return nil
	}
	count := float64(len(ids))
	return &count
}
