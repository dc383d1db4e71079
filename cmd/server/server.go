package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/kestrelgames/puzzlehall/internal/config"
	"github.com/kestrelgames/puzzlehall/internal/crossword"
	"github.com/kestrelgames/puzzlehall/internal/jeopardy"
	"github.com/kestrelgames/puzzlehall/internal/router"
	"github.com/kestrelgames/puzzlehall/internal/store"
	"github.com/kestrelgames/puzzlehall/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressLogger is the default ProgressListener: it just logs, since this
// repository carries no outer "calendar" surface to push puzzle-progress
// summaries to.
type progressLogger struct{}

func (progressLogger) OnPuzzleProgress(date string, filled, total int) {
	log.Printf("[Progress] date=%s filled=%d/%d", date, filled, total)
}

// Serve builds the store, room registries, routers, and HTTP server, then
// blocks until ctx is cancelled, draining in-flight work for cfg.ShutdownGrace
// before returning.
func Serve(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	hub := transport.NewHub()
	crosswordRegistry := crossword.NewRegistry()
	jeopardyRegistry := jeopardy.NewRegistry()

	crosswordRouter := router.NewCrosswordRouter(crosswordRegistry, st, hub, progressLogger{})
	jeopardyRouter := router.NewJeopardyRouter(jeopardyRegistry, st, hub)

	hub.OnEvent(func(socketID, _, event string, data []byte) {
		eventCtx := context.Background()
		crosswordRouter.Handle(eventCtx, socketID, event, data)
		jeopardyRouter.Handle(eventCtx, socketID, event, data)
	})

	go reapIdleRooms(ctx, crosswordRegistry, jeopardyRegistry, cfg)

	mx := mux.NewRouter()
	mx.Use(corsMiddleware)
	mx.HandleFunc("/healthz", serveHealth)
	mx.HandleFunc("/stats", serveStats(hub))
	mx.HandleFunc("/ws", serveWebSocket(hub, crosswordRouter, jeopardyRouter))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)),
		Handler:           mx,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown: %v", err)
	}

	crosswordRegistry.CancelAll()
	jeopardyRegistry.CancelAll()
	hub.CloseAll()

	return nil
}

// reapIdleRooms periodically evicts empty trivia rooms (on the next tick for
// an unfinished game, after cfg.RoomIdleTimeout once the game is over) and,
// if cfg.CrosswordEvictDelay is positive, empty crossword rooms older than
// that. Crossword rooms default to never being
// evicted, since the same puzzle date is commonly revisited within a day.
func reapIdleRooms(ctx context.Context, cw *crossword.Registry, jp *jeopardy.Registry, cfg *config.Config) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jp.EvictIdle(cfg.RoomIdleTimeout)
			if cfg.CrosswordEvictDelay > 0 {
				cw.EvictIdle(cfg.CrosswordEvictDelay)
			}
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Printf("[Server] no database-url given, running with the in-memory store")
		return store.NewMemory(), nil
	}
	return store.NewPostgres(ctx, cfg.DatabaseURL)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func serveStats(hub *transport.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Stats()); err != nil {
			log.Printf("[Server] /stats: encode: %v", err)
		}
	}
}

// socketSeq gives every accepted connection a unique id; the game-level
// identity (player, device) is established later by the first join/create
// message, per the room lifecycle this server follows.
var socketSeq int64

func nextSocketID() string {
	seq := atomic.AddInt64(&socketSeq, 1)
	return fmt.Sprintf("sock-%d-%d", time.Now().UnixNano(), seq)
}

func serveWebSocket(hub *transport.Hub, cw *router.CrosswordRouter, jp *router.JeopardyRouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[Server] upgrade failed: %v", err)
			return
		}
		socketID := nextSocketID()
		sock := hub.Register(socketID, conn)

		defer func() {
			ctx := context.Background()
			cw.HandleDisconnect(ctx, socketID)
			jp.HandleDisconnect(ctx, socketID)
			hub.Disconnect(socketID)
			_ = sock.Close()
		}()

		transport.ReadLoop(hub, sock, "")
	}
}
