package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// 統一回傳格式 {status, data, message}
// ⭐ SSOT: API envelope 只在這個檔案組裝

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondOK wraps data in the success envelope.
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data":   data,
	})
}

// respondOKExtra is respondOK with extra top-level fields merged in,
// for routes that return side payloads next to data.
func respondOKExtra(w http.ResponseWriter, data interface{}, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"status": "ok",
		"data":   data,
	}
	for k, v := range extra {
		payload[k] = v
	}
	respondJSON(w, http.StatusOK, payload)
}

// respondError wraps a message in the error envelope.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"status":  "error",
		"data":    nil,
		"message": message,
	})
}

// defaultDates returns the fallback [start, end] range when the caller
// omits dates. Months are approximated as 30 days, matching what the
// frontend charts expect.
func defaultDates(now time.Time, months int) (string, string) {
	end := now
	start := end.AddDate(0, 0, -months*30)
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}
