package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/louisbranch/rollcall/internal/services/attendance/api/contract"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"golang.org/x/net/websocket"
)

const peerBuffer = 32

type feedFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type feedPeer struct {
	conn *websocket.Conn
	send chan feedFrame
}

// Feed pushes every admission to connected websocket clients. Slow clients
// drop frames instead of stalling check-ins.
type Feed struct {
	mu    sync.Mutex
	peers map[*feedPeer]struct{}
	logf  func(format string, args ...any)
}

// NewFeed returns an empty feed.
func NewFeed(logf func(format string, args ...any)) *Feed {
	if logf == nil {
		logf = log.Printf
	}
	return &Feed{peers: make(map[*feedPeer]struct{}), logf: logf}
}

// Handler serves the websocket endpoint. Clients only listen; inbound
// frames are read and discarded to detect disconnects.
func (f *Feed) Handler() http.Handler {
	ws := websocket.Handler(f.serve)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	})
}

func (f *Feed) serve(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	peer := &feedPeer{conn: conn, send: make(chan feedFrame, peerBuffer)}
	f.register(peer)
	defer f.unregister(peer)

	go func() {
		encoder := json.NewEncoder(conn)
		for frame := range peer.send {
			if err := encoder.Encode(frame); err != nil {
				_ = conn.Close()
			}
		}
	}()

	decoder := json.NewDecoder(conn)
	for {
		var discard json.RawMessage
		if err := decoder.Decode(&discard); err != nil {
			if !errors.Is(err, io.EOF) {
				f.logf("feed connection closed err=%v", err)
			}
			return
		}
	}
}

func (f *Feed) register(peer *feedPeer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[peer] = struct{}{}
}

func (f *Feed) unregister(peer *feedPeer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.peers[peer]; ok {
		delete(f.peers, peer)
		close(peer.send)
	}
}

// subscribers reports how many clients are connected.
func (f *Feed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

// Admitted implements ledger.Notifier.
func (f *Feed) Admitted(_ context.Context, result ledger.Result) {
	payload, err := json.Marshal(contract.Admission{
		Record:    contract.NewRecord(result.Record),
		Duplicate: result.Duplicate,
	})
	if err != nil {
		f.logf("feed encode failed err=%v", err)
		return
	}
	frame := feedFrame{Type: contract.AdmissionEventType, Payload: payload}

	f.mu.Lock()
	defer f.mu.Unlock()
	for peer := range f.peers {
		select {
		case peer.send <- frame:
		default:
			f.logf("feed subscriber lagging, frame dropped session_id=%s", result.Record.SessionID)
		}
	}
}

// Close disconnects every subscriber. Hijacked connections are not closed
// by http.Server.Shutdown, so the app calls this during shutdown.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for peer := range f.peers {
		delete(f.peers, peer)
		close(peer.send)
		_ = peer.conn.Close()
	}
}
