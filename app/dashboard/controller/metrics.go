package controller

import (
	"net/http"
	"time"

	"github.com/debaseonomics/debasex/app/dashboard/types"
	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
)

// HandleMetrics returns the rendered scalar metrics.
func (c *Controller) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := c.App.State.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":     types.RenderLines(snap.Scalars, time.Now()),
		"refreshedAt": snap.RefreshedAt,
	})
}

// HandleView returns the whole rendered dashboard.
func (c *Controller) HandleView(w http.ResponseWriter, r *http.Request) {
	view := types.Render(
		c.App.State.Snapshot(),
		time.Now(),
		c.App.Rebaser.Pending(),
		c.App.Reader.CanSign(),
		c.recentNotifications(r),
	)
	writeJSON(w, http.StatusOK, view)
}

func (c *Controller) HandleTotalSupplySeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": c.App.State.Snapshot().Series.TotalSupply})
}

func (c *Controller) HandleRebasePercentageSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": c.App.State.Snapshot().Series.RebasePercentage})
}

// HandleRebases returns the raw history as last fetched, newest first.
func (c *Controller) HandleRebases(w http.ResponseWriter, _ *http.Request) {
	snap := c.App.State.Snapshot()
	body := map[string]any{"data": snap.History}
	if snap.HistoryError != "" {
		body["error"] = snap.HistoryError
	}
	writeJSON(w, http.StatusOK, body)
}

func (c *Controller) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": c.recentNotifications(r)})
}

// recentNotifications prefers the shared Redis log so every instance shows the same list,
// and falls back to this instance's memory.
func (c *Controller) recentNotifications(r *http.Request) []types.Notification {
	local := c.App.Notifier.Recent()
	if c.App.RedisClient == nil {
		return local
	}

	payloads, err := c.App.RedisClient.Recent(r.Context())
	if err != nil {
		c.App.Logger.Warn("Failed to read notification log, using local history", zap.Error(err))
		return local
	}
	out := make([]types.Notification, 0, len(payloads))
	for _, p := range payloads {
		var n types.Notification
		if err := json.Unmarshal([]byte(p), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
