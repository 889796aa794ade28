package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/asistenteai/asistente/adapters/message_broker"
	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

// Server feeds admin panel clients with activity events published on the
// message broker: turn completions, WhatsApp status changes, QR refreshes.
type Server struct {
	upgrader websocket.Upgrader
	broker   domain.MessageBroker
	hub      *Hub
}

func NewServer(broker domain.MessageBroker) *Server {
	server := &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		broker:   broker,
		hub:      NewHub(),
	}

	go server.startActivityListener()

	return server
}

func (s *Server) RunWebsocketHub() {
	s.hub.Run()
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// startActivityListener relays broker activity events to every connected
// admin client.
func (s *Server) startActivityListener() {
	ctx := context.Background()

	messageChan, err := s.broker.Subscribe(ctx, message_broker.ActivityTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("failed to subscribe to activity topic", zap.Error(err))
		return
	}

	log.WithCtx(ctx).Info("admin feed listening for activity events")

	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			s.hub.Broadcast(msg.Payload)

		case <-ctx.Done():
			return
		}
	}
}
