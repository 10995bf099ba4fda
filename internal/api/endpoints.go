package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Riley94/multi-cloud-manager/internal/db"
	"github.com/Riley94/multi-cloud-manager/internal/logging"
)

// Request counters updated by the middleware in Router.
var (
	totalRequests   uint64
	total4xx        uint64
	total5xx        uint64
	bytesIn         uint64
	bytesOut        uint64
	totalDurationNs uint64
)

var startedAt = time.Now()

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	total := atomic.LoadUint64(&totalRequests)
	durNs := atomic.LoadUint64(&totalDurationNs)
	var avgMs float64
	if total > 0 {
		avgMs = float64(durNs) / float64(total) / 1e6
	}
	out := map[string]any{
		"uptimeSeconds":  int64(time.Since(startedAt).Seconds()),
		"totalRequests":  total,
		"total4xx":       atomic.LoadUint64(&total4xx),
		"total5xx":       atomic.LoadUint64(&total5xx),
		"bytesIn":        atomic.LoadUint64(&bytesIn),
		"bytesOut":       atomic.LoadUint64(&bytesOut),
		"avgDurationMs":  avgMs,
		"goroutines":     runtime.NumGoroutine(),
		"heapAllocBytes": ms.HeapAlloc,
		"heapSysBytes":   ms.HeapSys,
		"numGC":          ms.NumGC,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// operationsHandler returns the persisted audit trail, newest first.
func operationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	ops, err := db.RecentOperations(limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "could not load operations")
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

// logsHandler exposes the in-memory log ring, newest first.
func logsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, logging.Recent(limit))
}
