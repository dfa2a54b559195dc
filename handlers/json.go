package handlers

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rxguard/prescription-api/logging"
)

// Minimum response size to consider compression (1KB)
const compressionThreshold = 1024

func respondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))

	dataSize := len(data)
	shouldCompress := dataSize >= compressionThreshold && acceptsGzip(r)

	if shouldCompress {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(code)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write(data)
		logging.Debug("Compressed JSON response",
			"original_size", dataSize,
			"compressed", true)
	} else {
		w.WriteHeader(code)
		w.Write(data)
		logging.Debug("Sent uncompressed JSON response",
			"original_size", dataSize,
			"compressed", false,
			"above_threshold", dataSize >= compressionThreshold,
			"accepts_gzip", acceptsGzip(r))
	}
}

func respondWithError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)

	errorResponse := map[string]string{"error": msg}

	jsonResponse, err := json.Marshal(errorResponse)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Error responses are typically small, so don't compress them
	w.Write(jsonResponse)
	logging.Debug("Sent error response", "size", len(jsonResponse), "compressed", false)
}

func acceptsGzip(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Accept-Encoding")), "gzip")
}
