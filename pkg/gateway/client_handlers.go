package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

type createClientRequest struct {
	Nodes           []string        `json:"nodes"`
	QuorumSize      *uint8          `json:"quorum_size,omitempty"`
	QuorumThreshold *uint8          `json:"quorum_threshold,omitempty"`
	BrokerOptions   json.RawMessage `json:"broker_options,omitempty"`
}

// createClientHandler handles POST /v1/clients
func (g *Gateway) createClientHandler(w http.ResponseWriter, r *http.Request) {
	var body createClientRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	b := g.rt.NewClientBuilder().AddNodes(body.Nodes)
	if body.QuorumSize != nil {
		b.SetQuorumSize(*body.QuorumSize)
	}
	if body.QuorumThreshold != nil {
		b.SetQuorumThreshold(*body.QuorumThreshold)
	}
	if len(body.BrokerOptions) > 0 {
		if err := b.SetBrokerOptions(string(body.BrokerOptions)); err != nil {
			writeError(w, r, err)
			return
		}
	}

	handle, err := b.Build(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	g.logger.ComponentInfo(logging.ComponentGateway, "client created", zap.String("handle", handle))
	writeJSON(w, http.StatusCreated, map[string]any{"handle": handle})
}

// listClientsHandler handles GET /v1/clients
func (g *Gateway) listClientsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"handles": g.rt.Handles()})
}

// getClientHandler handles GET /v1/clients/{handle}
func (g *Gateway) getClientHandler(w http.ResponseWriter, r *http.Request) {
	info, err := g.rt.ClientInfo(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// deleteClientHandler handles DELETE /v1/clients/{handle}
func (g *Gateway) deleteClientHandler(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if err := g.rt.DropClient(handle); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
