package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/devsmilefactory/moversfinder-sub006/internal/feed"
	"github.com/devsmilefactory/moversfinder-sub006/internal/observability"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
	"github.com/devsmilefactory/moversfinder-sub006/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// clientSink adapts a hub client into a feed view sink.
type clientSink struct {
	client *services.Client
}

func (s clientSink) Send(view feed.View) {
	s.client.Deliver("feed_view", view)
}

// WebSocketHandler upgrades the connection, registers the client with the hub
// and runs one feed synchronizer for the connection's lifetime. Clients steer
// their view by sending {"type":"switch_tab","tab":"open","page":1} frames.
func WebSocketHandler(hub *services.Hub, db *gorm.DB, broker *propagator.Broker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		client, err := services.HandleWebSocket(hub, c.Writer, c.Request, userID, userType)
		if err != nil {
			return
		}
		observability.ConnectedClients.Inc()

		fetcher := &feed.GormFetcher{DB: db, UserID: userID, UserType: userType}
		feedSync := feed.NewSynchronizer(fetcher, clientSink{client: client}, broker, logger)

		ctx, cancel := context.WithCancel(context.Background())
		go feedSync.Run(ctx)
		feedSync.SwitchTab(feed.Query{Tab: feed.TabOpen, Page: 1, PerPage: 20})

		go func() {
			defer cancel()
			defer observability.ConnectedClients.Dec()
			for {
				select {
				case <-client.Done:
					return
				case raw := <-client.Inbound:
					var msg struct {
						Type string `json:"type"`
						Tab  string `json:"tab"`
						Page int    `json:"page"`
					}
					if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "switch_tab" {
						continue
					}
					if msg.Page < 1 {
						msg.Page = 1
					}
					feedSync.SwitchTab(feed.Query{Tab: feed.Tab(msg.Tab), Page: msg.Page, PerPage: 20})
				}
			}
		}()
	}
}
