package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/logging"
)

// handleEventStream streams broadcast.Events for one workflow over
// SSE. Grounded on Lens/modules/core/pkg/workflow/live_api.go's
// HandleLiveStream: same header set, same ping/event select loop,
// same sendSSEEvent line format — but sourced from the in-process bus
// instead of a DB poll ticker, since torc already holds state change
// events in memory.
func (s *Server) handleEventStream(c *gin.Context) {
	workflowIDStr := c.Query("workflow_id")
	workflowID, err := strconv.ParseInt(workflowIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid or missing workflow_id"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Access-Control-Allow-Origin", "*")

	ctx := c.Request.Context()
	sub := s.bus.Subscribe(workflowID)
	defer sub.Close()

	pingInterval := s.sseConfig.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	sendSSEEvent(c, "ready", gin.H{"workflow_id": workflowID})

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			sendSSEEvent(c, "event", event)

		case <-pingTicker.C:
			sendSSEEvent(c, "ping", gin.H{"timestamp": time.Now().Unix()})

		case <-ctx.Done():
			logging.Debugf("httpapi: SSE client disconnected for workflow %d", workflowID)
			return
		}
	}
}

func sendSSEEvent(c *gin.Context, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logging.Errorf("httpapi: failed to marshal SSE data: %v", err)
		return
	}
	c.Writer.WriteString(fmt.Sprintf("event: %s\n", event))
	c.Writer.WriteString(fmt.Sprintf("data: %s\n\n", string(jsonData)))
	c.Writer.Flush()
}
