package websocket

import (
	"github.com/labstack/echo/v4"
)

// Handler upgrades an admin panel connection on "/ws/admin". Authentication
// happens in the route middleware before the upgrade.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	subject, _ := c.Get("username").(string)

	client := NewClient(conn, subject)
	s.hub.Register(client)
	client.Run()

	defer s.hub.Unregister(client)

	<-client.Context().Done()

	return nil
}
