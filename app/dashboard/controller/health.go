package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":        "ok",
		"provider":      c.App.Reader.Connected(),
		"signer":        c.App.Reader.CanSign(),
		"historyLoaded": c.App.State.HistoryLoaded(),
		"redis":         "disabled",
	}

	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(r.Context()); err != nil {
			status["status"] = "errored"
			status["redis"] = "errored"
			status["error"] = "redis connection error"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["redis"] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}
