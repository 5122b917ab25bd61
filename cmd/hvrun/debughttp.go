package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/websocket"
)

// serveDebugHTTP exposes the live counter snapshot over a websocket so a
// browser tab can poll vmexit activity during a long --watch session,
// without needing its own copy of hv/vmm's wire format. Shuts down cleanly
// when ctx is cancelled, same as every other hvrun subsystem.
func serveDebugHTTP(ctx context.Context, addr string, counters *counterStore) error {
	mux := http.NewServeMux()
	mux.Handle("/counters", websocket.Handler(func(ws *websocket.Conn) {
		streamCounters(ctx, ws, counters)
	}))

	srv := &http.Server{Addr: addr, Handler: mux}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// streamCounters pushes one JSON-encoded counterSnapshot per tick until the
// connection or context closes, the same push-on-interval shape as a
// status bar polling a counters store rather than needing its own
// change-notification channel.
func streamCounters(ctx context.Context, ws *websocket.Conn, counters *counterStore) {
	defer ws.Close()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	enc := json.NewEncoder(ws)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := enc.Encode(counters.Snapshot()); err != nil {
				return
			}
		}
	}
}
