package controller

import (
	"errors"
	"net/http"

	"github.com/debaseonomics/debasex/app/dashboard/types"
)

// HandleRebase triggers orchestrator.rebase() and waits for it to be mined.
//
// 409 while a rebase is pending, 503 without a signer, 502 on failure (the body still carries
// the failure notification), 200 with the transaction hash on success.
func (c *Controller) HandleRebase(w http.ResponseWriter, r *http.Request) {
	if !c.App.Reader.CanSign() {
		writeError(w, http.StatusServiceUnavailable, "rebase signer not configured")
		return
	}

	result, err := c.App.Rebaser.Trigger(r.Context())
	switch {
	case errors.Is(err, types.ErrRebasePending):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":        types.MessageRebaseFailed,
			"notification": result.Notification,
		})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}
