package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brianfdo/signlearner/internal/orchestrator"
)

const stateEventName = "state"

// handleEvents streams every state snapshot of a session as server-sent
// events. The stream ends when the client disconnects or the session closes.
func (s *Server) handleEvents(c echo.Context) error {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return failNotFound(c, "Session not found")
	}

	detach := s.sessions.attach(sess)
	defer detach()

	updates, unsubscribe := sess.orch.Subscribe()
	defer unsubscribe()

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(c.Response().Writer).SetWriteDeadline(time.Time{})

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(s.opts.HeartbeatEvery)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case snapshot, ok := <-updates:
			if !ok {
				_, _ = fmt.Fprint(res, "event: closed\ndata: {}\n\n")
				res.Flush()
				return nil
			}
			if err := writeStateEvent(res, snapshot); err != nil {
				s.logger.Debug().Err(err).Str("session_id", sess.id).Msg("event stream write failed")
				return nil
			}
			res.Flush()
		}
	}
}

func writeStateEvent(res *echo.Response, snapshot orchestrator.State) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = fmt.Fprintf(res, "id: %d\nevent: %s\ndata: %s\n\n", snapshot.Revision, stateEventName, payload)
	return err
}
