package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hatchlab/hatchdesk/models"
)

const (
	// heartbeatInterval keeps the server's read deadline from expiring.
	heartbeatInterval = 30 * time.Second
	handshakeTimeout  = 10 * time.Second
	liveWriteWait     = 10 * time.Second
)

// Subscribe connects to the live event socket and calls handle for each
// event until ctx ends or the connection drops. handle runs on the reading
// goroutine, one event at a time.
//
// The socket authenticates with the session cookies. A 401 during the
// handshake goes through the same deduplicated refresh as regular requests.
func (c *Client) Subscribe(ctx context.Context, handle func(models.LiveEvent)) error {
	conn, err := c.dialLive(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.logf("[client] live connection established")

	readErr := make(chan error, 1)
	go func() {
		for {
			var ev models.LiveEvent
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			if ev.Op == models.EventHeartbeatAck {
				continue
			}
			handle(ev)
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(liveWriteWait))
			return ctx.Err()

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("live connection: %w", err)

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
				return fmt.Errorf("live connection: %w", err)
			}
			if err := conn.WriteJSON(models.LiveEvent{Op: models.EventHeartbeat}); err != nil {
				return fmt.Errorf("live heartbeat: %w", err)
			}
		}
	}
}

func (c *Client) dialLive(ctx context.Context) (*websocket.Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + "/ws"

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Jar:              c.http.Jar,
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err == nil {
		return conn, nil
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return nil, fmt.Errorf("dial live socket: %w", err)
	}

	if err := c.refresh(ctx, gen); err != nil {
		return nil, err
	}
	conn, resp, err = dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "live socket rejected the session"}
		}
		return nil, errors.Join(errors.New("dial live socket"), err)
	}
	return conn, nil
}
