/*
Package main
File: main.go
Description: Server entry point. Loads the road configuration, starts the real-time
WebSocket hub, and runs the heartbeat that ticks the simulation and broadcasts
every snapshot to connected viewers.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/everforgeworks/bridgeflow/internal/api"
	"github.com/everforgeworks/bridgeflow/internal/traffic"
)

func main() {
	configPath := flag.String("config", traffic.DefaultConfigPath, "path to the YAML road configuration")
	flag.Parse()

	// 1. Load the road configuration from YAML
	cfg, err := traffic.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Config Fail: %v", err)
	}

	// 2. Build the simulation. Time zero is now.
	engine, err := api.NewEngine(cfg, time.Now())
	if err != nil {
		log.Fatalf("Engine Fail: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize and start the Real-Time WebSocket Hub
	hub := api.NewHub()
	go hub.Run(ctx)

	// 4. THE HEARTBEAT
	// Every tick advances the road to the current wall time and pushes the snapshot out.
	go heartbeat(ctx, engine, hub, cfg.Server.TickInterval())

	// 5. Hot-reload logic: Listen for SIGHUP to rebuild the road without restart
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go reloadLoop(ctx, sigChan, *configPath, engine, hub)

	// 6. Setup Router and Handlers
	mux := http.NewServeMux()

	// Information Endpoints
	mux.HandleFunc("/api/snapshot", api.HandleGetSnapshot(engine))
	mux.HandleFunc("/api/road", api.HandleGetRoad(engine))
	mux.HandleFunc("/api/stats", api.HandleGetStats(engine))

	// Real-Time WebSocket Endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		api.ServeWs(hub, w, r)
	})

	// 7. Start the Server
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: corsMiddleware(mux)}
	go func() {
		<-ctx.Done()
		log.Println("SIGNAL: Shutting down...")
		shutdown(srv, 5*time.Second)
	}()

	log.Printf("BRIDGEFLOW Server live on %s", cfg.Server.Addr)
	log.Printf("Real-time Hub: Online (tick every %s)", cfg.Server.TickInterval())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// reloadLoop rebuilds the road from path every time sigs fires. An invalid
// file is logged and the running road is kept.
func reloadLoop(ctx context.Context, sigs <-chan os.Signal, path string, engine *api.Engine, hub *api.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
		}
		log.Println("SIGNAL: Reloading road configuration...")
		next, err := traffic.LoadConfig(path)
		if err != nil {
			log.Printf("SIGNAL: Reload rejected, keeping current road: %v", err)
			continue
		}
		if next.Server != engine.Config().Server {
			log.Println("SIGNAL: Server settings change on restart only")
		}
		if err := engine.Reset(next, time.Now()); err != nil {
			log.Printf("SIGNAL: Reload rejected, keeping current road: %v", err)
			continue
		}
		announce(ctx, hub, api.Message{Type: api.MessageReload, Payload: next, Sender: "engine"})
	}
}

// shutdown stops srv, giving open requests up to timeout to finish.
func shutdown(srv *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("SIGNAL: Shutdown incomplete: %v", err)
	}
	return err
}

// heartbeat ticks the engine until ctx is done. A rejected tick is logged and
// nothing is broadcast for it.
func heartbeat(ctx context.Context, engine *api.Engine, hub *api.Hub, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			snap, err := engine.Advance(at)
			if err != nil {
				log.Printf("SIM: Tick rejected: %v", err)
				continue
			}

			jsonBytes, err := api.EncodeSnapshot(snap)
			if err != nil {
				log.Printf("Error marshaling snapshot: %v", err)
				continue
			}
			select {
			case hub.Broadcast <- jsonBytes:
			case <-ctx.Done():
				return
			}
		}
	}
}

// announce broadcasts a one-off message unless the server is going down.
func announce(ctx context.Context, hub *api.Hub, msg api.Message) {
	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	select {
	case hub.Broadcast <- jsonBytes:
	case <-ctx.Done():
	}
}

// corsMiddleware lets a viewer served from another origin read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
