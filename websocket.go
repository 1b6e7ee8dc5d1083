package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const websocketWriteTimeout = 5 * time.Second

// createWebsocketHandler streams every registry event to the client as JSON
// until either side goes away.
func createWebsocketHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %s", err), http.StatusInternalServerError)
			return
		}
		defer c.Close(websocket.StatusInternalError, "the sky is falling")

		unsub, ch := reg.Subscribe()
		defer unsub()

		// The client never sends anything; CloseRead handles pings and closes.
		ctx := c.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				log.Debug().Msg("Websocket client went away")
				return
			case e, ok := <-ch:
				if !ok {
					c.Close(websocket.StatusNormalClosure, "")
					return
				}
				if err := writeTimeout(ctx, websocketWriteTimeout, c, e); err != nil {
					log.Err(err).Msg("Failed to write event to websocket")
					return
				}
			}
		}
	}
}

func writeTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return wsjson.Write(ctx, c, msg)
}
