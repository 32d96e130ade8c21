package gateway

import (
	"net/http"
	"time"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/mackerelio/go-osstat/memory"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

// healthResponse is the JSON structure used by healthHandler
type healthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		StartedAt: g.startedAt,
		Uptime:    time.Since(g.startedAt).String(),
	})
}

type hostStats struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryTotal        uint64  `json:"memory_total"`
	MemoryUsed         uint64  `json:"memory_used"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

// readHostStats samples cumulative CPU counters and current memory usage.
// Unsupported platforms yield zero values.
func (g *Gateway) readHostStats() hostStats {
	var hs hostStats
	if c, err := cpu.Get(); err == nil && c.Total > 0 {
		hs.CPUUsagePercent = (1.0 - float64(c.Idle)/float64(c.Total)) * 100.0
	} else if err != nil {
		g.logger.ComponentDebug(logging.ComponentGateway, "cpu stats unavailable", zap.Error(err))
	}
	if m, err := memory.Get(); err == nil && m.Total > 0 {
		hs.MemoryTotal = m.Total
		hs.MemoryUsed = m.Used
		hs.MemoryUsagePercent = float64(m.Used) / float64(m.Total) * 100
	} else if err != nil {
		g.logger.ComponentDebug(logging.ComponentGateway, "memory stats unavailable", zap.Error(err))
	}
	return hs
}

// statusHandler aggregates server uptime, bridge counters and host usage
func (g *Gateway) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server": map[string]any{
			"started_at": g.startedAt,
			"uptime":     time.Since(g.startedAt).String(),
		},
		"bridge": map[string]any{
			"clients":     len(g.rt.Handles()),
			"subscribers": g.subscribers.Len(),
		},
		"host": g.readHostStats(),
	})
}
