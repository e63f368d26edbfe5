package apiclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventTypeSlideChange marks a committed create, update or delete on the server.
const EventTypeSlideChange = "slide-change"

const eventBufferSize = 16

// ChangeEvent is one message from the server's /events stream.
type ChangeEvent struct {
	Type      string    `json:"type"`
	Action    string    `json:"action,omitempty"`
	SlideIDs  []int64   `json:"slideIds"`
	Timestamp time.Time `json:"timestamp"`
}

// Events opens the change stream. The channel closes when ctx ends or the connection drops;
// the server's pings are answered by the read loop.
func (c *Client) Events(ctx context.Context) (<-chan ChangeEvent, error) {
	streamURL := *c.baseURL
	switch strings.ToLower(streamURL.Scheme) {
	case "https":
		streamURL.Scheme = "wss"
	default:
		streamURL.Scheme = "ws"
	}
	streamURL.Path = strings.TrimRight(streamURL.Path, "/") + "/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: dial %s: %w", streamURL.String(), err)
	}

	events := make(chan ChangeEvent, eventBufferSize)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})

	go func() {
		defer close(events)
		defer stop()
		defer conn.Close()
		for {
			var event ChangeEvent
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("change stream closed", zap.Error(err))
				}
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
