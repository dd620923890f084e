package httpx

import "net/http"

// healthHandler reports process liveness. No session, no auth, no limits.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
