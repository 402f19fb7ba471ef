package httpapp

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends {"error": msg}. Messages are fixed per handler; the
// underlying cause is logged, never returned.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type messageResponse struct {
	Message string `json:"message"`
}

// readJSON decodes a JSON object body. Unknown fields are tolerated so a
// client may send back a full resource; handlers pick what they accept.
func readJSON(w http.ResponseWriter, r *http.Request, limit int, dest any) error {
	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, int64(limit))
	}
	defer body.Close()
	return json.NewDecoder(body).Decode(dest)
}
