// Command ramptarget runs a sample HTTP target for manual rampede runs. It
// serves a login endpoint that issues a session cookie and an API endpoint
// whose latency climbs with concurrency, so a ramp has a knee to find.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

const sessionToken = "ramptarget-session"

var (
	inflight     int64
	requireAuth  bool
	cookieName   string
	baseLatency  time.Duration
	degradeAfter int64
	degradeStep  time.Duration
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	flag.BoolVar(&requireAuth, "auth", false, "Require the session cookie on /api/items")
	flag.StringVar(&cookieName, "cookie-name", "session", "Session cookie name")
	flag.DurationVar(&baseLatency, "base-latency", 20*time.Millisecond, "Response time under light load")
	flag.Int64Var(&degradeAfter, "degrade-after", 8, "In-flight requests beyond which latency climbs")
	flag.DurationVar(&degradeStep, "degrade-step", 15*time.Millisecond, "Extra latency per in-flight request past the knee")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/api/items", handleItems)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("ramptarget listening on %s (auth=%v, knee at %d in-flight)", addr, requireAuth, degradeAfter)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: sessionToken, Path: "/"})
	// The token also rides in the body for --token-path runs.
	respondJSON(w, http.StatusOK, map[string]any{
		"auth": map[string]any{"token": sessionToken},
	})
}

func handleItems(w http.ResponseWriter, r *http.Request) {
	if requireAuth {
		c, err := r.Cookie(cookieName)
		if err != nil || c.Value != sessionToken {
			respondJSON(w, http.StatusForbidden, map[string]any{"error": "missing or invalid session"})
			return
		}
	}

	n := atomic.AddInt64(&inflight, 1)
	defer atomic.AddInt64(&inflight, -1)

	delay := baseLatency
	if over := n - degradeAfter; over > 0 {
		delay += time.Duration(over) * degradeStep
	}
	time.Sleep(delay)

	respondJSON(w, http.StatusOK, map[string]any{
		"items":     []string{"alpha", "beta", "gamma"},
		"in_flight": n,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
