package reforms

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isDevelopment() bool {
	return os.Getenv("APP_ENV") == "development"
}

// writeError emits the failure envelope. The internal error is logged but
// surfaced to the caller only in development mode.
func writeError(w http.ResponseWriter, status int, publicMsg string, err error) {
	if err != nil {
		log.Printf("[Reforms] %s: %v", publicMsg, err)
	}
	body := map[string]any{
		"success": false,
		"error":   publicMsg,
	}
	if err != nil && isDevelopment() {
		body["details"] = err.Error()
	}
	writeJSONStatus(w, status, body)
}
