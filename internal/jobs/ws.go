package jobs

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// clientMessage is what subscribers send over the websocket.
type clientMessage struct {
	Action string `json:"action"`
	JobID  string `json:"jobId"`
}

// wsSubscriber adapts one websocket connection to the Subscriber interface.
// Writes are serialized: gorilla/websocket allows a single concurrent writer.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscriber) Notify(event StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A dead connection is cleaned up by the read loop; nothing to do here.
	_ = s.conn.WriteJSON(event)
}

// SubscribeHandler returns the handler for GET /ws. A client opens the
// socket, sends a subscribe message with a job id and then receives status
// frames until the terminal one. One job id per connection; closing the
// socket or sending a disconnect message only stops the event stream, it
// never cancels backend work already under way.
func SubscribeHandler(orch *Orchestrator, logger zerolog.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Cross-origin policy is enforced by the CORS layer in front.
			return true
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		sub := &wsSubscriber{conn: conn}
		var jobID string
		defer func() {
			if jobID != "" {
				orch.Unsubscribe(jobID, sub)
			}
		}()

		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Action {
			case "subscribe":
				if jobID != "" || msg.JobID == "" {
					continue
				}
				jobID = msg.JobID
				logger.Debug().Str("jobId", jobID).Msg("subscriber attached")
				orch.Subscribe(jobID, sub)
			case "disconnect":
				return
			}
		}
	}
}
