package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/careloop/careteam-BE/internal/event"
	"github.com/gin-gonic/gin"
)

// streamFeedEvents establishes an SSE connection that tells the client when
// its notification feed changed. The event carries no payload beyond the
// topic; clients re-read the feed from the API.
func (server *Server) streamFeedEvents(c *gin.Context) {
	userID := authenticatedUserID(c)
	topic := event.UserTopic(userID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	clientChan := make(chan event.Event)
	server.eventSender.Register(topic, clientChan)
	defer server.eventSender.Unregister(topic, clientChan)

	for {
		select {
		case ev := <-clientChan:
			data, _ := json.Marshal(ev.Data)
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
