package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/bridge"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

type subscriberView struct {
	ID      string   `json:"id"`
	Handle  string   `json:"handle"`
	Topics  []string `json:"topics"`
	State   string   `json:"state"`
	Pending int      `json:"pending"`
	Closed  bool     `json:"closed"`
}

func viewOf(id string, s *bridge.TopicSubscriber) subscriberView {
	return subscriberView{
		ID:      id,
		Handle:  s.Handle(),
		Topics:  s.Topics(),
		State:   s.State().String(),
		Pending: s.Pending(),
		Closed:  s.Closed(),
	}
}

// lookup resolves the {id} URL parameter.
func (g *Gateway) lookup(r *http.Request) (string, *bridge.TopicSubscriber, error) {
	id := chi.URLParam(r, "id")
	entry, err := g.subscribers.Resolve(id)
	if err != nil {
		return id, nil, err
	}
	var s *bridge.TopicSubscriber
	_ = entry.Read(func(v *bridge.TopicSubscriber) error {
		s = v
		return nil
	})
	return id, s, nil
}

// awaitCompletion waits for a bridge callback or for the request to end.
func awaitCompletion(ctx context.Context, op func(cb func(error))) error {
	done := make(chan error, 1)
	op(func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createSubscriberHandler handles POST /v1/subscribers {handle, topics}
func (g *Gateway) createSubscriberHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Handle string   `json:"handle"`
		Topics []string `json:"topics"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := g.rt.ClientInfo(body.Handle); err != nil {
		writeError(w, r, err)
		return
	}

	s := g.rt.NewTopicSubscriber(body.Handle)
	if len(body.Topics) > 0 {
		if err := s.AddTopics(body.Topics); err != nil {
			writeError(w, r, err)
			return
		}
	}
	id := g.subscribers.Register(s)
	g.logger.ComponentInfo(logging.ComponentGateway, "subscriber created",
		zap.String("id", id), zap.String("handle", body.Handle))
	writeJSON(w, http.StatusCreated, viewOf(id, s))
}

// getSubscriberHandler handles GET /v1/subscribers/{id}
func (g *Gateway) getSubscriberHandler(w http.ResponseWriter, r *http.Request) {
	id, s, err := g.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, s))
}

// addTopicsHandler handles POST /v1/subscribers/{id}/topics {topics}
func (g *Gateway) addTopicsHandler(w http.ResponseWriter, r *http.Request) {
	id, s, err := g.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Topics []string `json:"topics"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.AddTopics(body.Topics); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, s))
}

// subscribeHandler handles POST /v1/subscribers/{id}/subscribe
func (g *Gateway) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	id, s, err := g.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := awaitCompletion(r.Context(), s.Subscribe); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, s))
}

// unsubscribeHandler handles POST /v1/subscribers/{id}/unsubscribe
func (g *Gateway) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	id, s, err := g.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := awaitCompletion(r.Context(), s.Unsubscribe); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, s))
}

// pollTimeout reads ?timeout= and clamps it to the configured maximum.
func (g *Gateway) pollTimeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return g.cfg.DefaultPollTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.NewValidationError("timeout", "timeout must be a positive duration", raw)
	}
	return min(d, g.cfg.MaxPollTimeout), nil
}

// pollHandler handles GET /v1/subscribers/{id}/poll?timeout=10s
func (g *Gateway) pollHandler(w http.ResponseWriter, r *http.Request) {
	_, s, err := g.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	timeout, err := g.pollTimeout(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	event, err := s.Next(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": json.RawMessage(event)})
}

// deleteSubscriberHandler handles DELETE /v1/subscribers/{id}. The topics
// are unsubscribed first unless ?unsubscribe=false.
func (g *Gateway) deleteSubscriberHandler(w http.ResponseWriter, r *http.Request) {
	id, s, err := g.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("unsubscribe") != "false" && s.State() == bridge.StateSubscribed {
		if err := awaitCompletion(r.Context(), s.Unsubscribe); err != nil {
			g.logger.ComponentWarn(logging.ComponentGateway, "unsubscribe on delete failed",
				zap.String("id", id), zap.Error(err))
		}
	}
	s.Close()
	g.subscribers.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
