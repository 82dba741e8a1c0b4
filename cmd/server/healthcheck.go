package main

import (
	"fmt"
	"net/http"
	"time"
)

// handleHealth handles the GET /health endpoint
func (app *application) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connections, waiting, active := app.Hub.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w,
		`{"status":"ok","uptime":"%s","connections":%d,"waiting_players":%d,"active_sessions":%d}`,
		time.Since(app.StartTime), connections, waiting, active,
	)
}
