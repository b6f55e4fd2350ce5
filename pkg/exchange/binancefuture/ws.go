package binancefuture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsPingInterval     = 30 * time.Second
	// Two missed ping replies declare the connection dead.
	wsPongWait  = 2 * wsPingInterval
	wsWriteWait = 10 * time.Second
)

// StreamConn is a single combined-stream WebSocket connection. Frames are
// delivered on Frames() in arrival order; when the connection dies for any
// reason Frames() is closed and Err() reports the cause. A StreamConn never
// reconnects on its own — the feed manager owns that policy.
type StreamConn struct {
	url  string
	conn *websocket.Conn

	frames chan []byte

	closeOnce sync.Once
	closeChan chan struct{}
	wg        sync.WaitGroup

	mu  sync.Mutex
	err error
}

// DialCombinedStream connects to the combined-stream endpoint for the given
// stream names.
func DialCombinedStream(ctx context.Context, wsBaseURL string, streams []string, frameBuffer int) (*StreamConn, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("no streams to subscribe")
	}
	if frameBuffer <= 0 {
		frameBuffer = 1024
	}

	streamURL := CombinedStreamURL(wsBaseURL, streams)
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", streamURL, err)
	}

	sc := &StreamConn{
		url:       streamURL,
		conn:      conn,
		frames:    make(chan []byte, frameBuffer),
		closeChan: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	// Binance pings from the server side as well; answer and extend.
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteWait))
	})

	sc.wg.Add(2)
	go sc.readPump()
	go sc.pingPump()

	return sc, nil
}

// Frames returns the channel of raw combined-stream messages. The channel is
// closed when the connection terminates.
func (sc *StreamConn) Frames() <-chan []byte {
	return sc.frames
}

// URL returns the endpoint this connection dialed.
func (sc *StreamConn) URL() string {
	return sc.url
}

// Err returns the terminal error after Frames() is closed, nil on a clean
// local Close.
func (sc *StreamConn) Err() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.err
}

// Close tears the connection down and waits for the pumps to exit. Idempotent.
func (sc *StreamConn) Close() error {
	sc.closeOnce.Do(func() {
		close(sc.closeChan)
		sc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		sc.conn.Close()
	})
	sc.wg.Wait()
	return nil
}

// readPump reads messages until the connection dies, forwarding each one in
// arrival order. It is the only reader, so it owns closing frames.
func (sc *StreamConn) readPump() {
	defer sc.wg.Done()
	defer close(sc.frames)

	for {
		_, message, err := sc.conn.ReadMessage()
		if err != nil {
			select {
			case <-sc.closeChan:
				// local close, not an error
			default:
				sc.mu.Lock()
				sc.err = err
				sc.mu.Unlock()
				sc.closeOnce.Do(func() {
					close(sc.closeChan)
					sc.conn.Close()
				})
			}
			return
		}

		select {
		case sc.frames <- message:
		case <-sc.closeChan:
			return
		}
	}
}

// pingPump keeps the connection alive with periodic pings.
func (sc *StreamConn) pingPump() {
	defer sc.wg.Done()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.closeChan:
			return
		case <-ticker.C:
			err := sc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			if err != nil {
				// The read pump will observe the dead connection and clean up.
				return
			}
		}
	}
}
