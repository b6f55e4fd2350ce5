package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/BullionBear/depthgate/internal/registry"
	"github.com/BullionBear/depthgate/pkg/logger"
)

// handleWS upgrades /ws, registers the client with its initial symbol set
// and runs the control-message read loop until the client goes away.
func (s *Server) handleWS(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	symbols := strings.Split(c.Query("symbols"), ",")
	client := registry.NewClient(conn, symbols, s.cfg.Limits.SendQueueSize)
	s.registry.Add(client)
	go client.WritePump()

	client.ConfigureRead()
	for {
		message, err := client.ReadMessage()
		if err != nil {
			break
		}
		s.registry.HandleControl(client, message)
	}

	s.registry.Remove(client)
}
