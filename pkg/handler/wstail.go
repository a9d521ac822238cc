package handler

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Read-only log tail, no credentials involved; accept all origins.
		return true
	},
}

// newWSTail builds a handler that serves a live tail of the log stream
// over WebSocket. Each record goes out as one text message of the form
// `TIMESTAMP: message`. At end-of-stream all clients are closed and the
// HTTP server shuts down.
//
// Options:
//
//	listen: address to serve on (default "127.0.0.1:8080"); the tail
//	         endpoint is /tail.
func newWSTail(_ Deps, opts Options) (func(logparse.Record), error) {
	listen := opts["listen"]
	if listen == "" {
		listen = "127.0.0.1:8080"
	}

	tail, err := startWSTail(listen)
	if err != nil {
		return nil, err
	}
	return tail.onRecord, nil
}

func startWSTail(listen string) (*wsTail, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("wstail: failed to listen on %s: %w", listen, err)
	}

	tail := &wsTail{
		addr:    ln.Addr().String(),
		clients: make(map[*websocket.Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tail", tail.handleTail)
	tail.server = &http.Server{Handler: mux}

	go func() {
		if err := tail.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("wstail: server error: %v", err)
		}
	}()
	log.Printf("wstail: serving live tail on ws://%s/tail", tail.addr)

	return tail, nil
}

type wsTail struct {
	server *http.Server
	addr   string

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// handleTail upgrades an HTTP request and adds the client to the fanout
// set. Clients never send anything meaningful; the read loop exists only
// to notice disconnects.
func (w *wsTail) handleTail(rw http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("wstail: upgrade failed: %v", err)
		return
	}

	w.mu.Lock()
	w.clients[ws] = true
	w.mu.Unlock()

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				w.drop(ws)
				return
			}
		}
	}()
}

func (w *wsTail) drop(ws *websocket.Conn) {
	w.mu.Lock()
	delete(w.clients, ws)
	w.mu.Unlock()
	ws.Close()
}

func (w *wsTail) onRecord(rec logparse.Record) {
	if rec.EndOfStream() {
		w.shutdown()
		return
	}

	line := fmt.Sprintf("%s: %s", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Message)

	w.mu.Lock()
	defer w.mu.Unlock()

	for ws := range w.clients {
		ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			// Slow or gone; cut it loose rather than stall the broadcast.
			delete(w.clients, ws)
			ws.Close()
		}
	}
}

func (w *wsTail) shutdown() {
	w.mu.Lock()
	for ws := range w.clients {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "log stream ended"),
			time.Now().Add(wsWriteTimeout))
		ws.Close()
	}
	w.clients = make(map[*websocket.Conn]bool)
	w.mu.Unlock()

	if err := w.server.Close(); err != nil {
		log.Printf("wstail: shutdown failed: %v", err)
	}
}
