package utils

import "io"

// maxBodyBytes caps how much of an upstream body is drained before closing.
const maxBodyBytes = 1 << 20

// DrainAndClose discards what is left of rc and closes it so the transport can reuse the connection.
func DrainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxBodyBytes))
	return rc.Close()
}
