// Package api exposes the bridge state over HTTP: lifecycle status,
// event history, the server icon and an authenticated console
// passthrough, plus a websocket stream of relayed events.
package api

import (
	"net/http"

	"github.com/wanderlust/wanderbridge/internal/auth"
	"github.com/wanderlust/wanderbridge/internal/bridge"
	"github.com/wanderlust/wanderbridge/internal/lifecycle"
	"github.com/wanderlust/wanderbridge/internal/sched"
	"github.com/wanderlust/wanderbridge/internal/store"
)

// Router holds the HTTP routes and dependencies.
type Router struct {
	mux     *http.ServeMux
	machine *lifecycle.Machine
	prober  bridge.StatusProber
	console bridge.Console
	hist    *store.History
	auth    *auth.Service
	hub     *Hub
	clk     sched.Clock
}

// NewRouter creates the HTTP router. inbound receives chat messages
// posted by websocket clients; nil disables inbound relay.
func NewRouter(machine *lifecycle.Machine, prober bridge.StatusProber, console bridge.Console, hist *store.History, authService *auth.Service, clk sched.Clock, inbound InboundFunc) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		machine: machine,
		prober:  prober,
		console: console,
		hist:    hist,
		auth:    authService,
		hub:     NewHub(inbound),
		clk:     clk,
	}

	r.mux.HandleFunc("GET /api/status", r.handleStatus)
	r.mux.HandleFunc("GET /api/history", r.handleHistory)
	r.mux.HandleFunc("GET /api/icon", r.handleIcon)

	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/rcon", r.requireAuth(r.handleRconCommand))

	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// Hub exposes the websocket hub so the bridge can use it as its Sender.
func (r *Router) Hub() *Hub { return r.hub }

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}
