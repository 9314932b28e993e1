package api

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
)

const streamWriteTimeout = 5 * time.Second

// streamSweeps upgrades to a websocket and pushes the current snapshot
// followed by every update until the client goes away.
func (s *Server) streamSweeps(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn(c.Request.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	updates, cancel := s.sweeper.Subscribe()
	defer cancel()

	// The stream is write-only; CloseRead handles control frames and
	// cancels ctx once the peer closes.
	ctx := conn.CloseRead(s.baseCtx)

	if err := s.push(ctx, conn, s.sweeper.Current()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case status, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := s.push(ctx, conn, status); err != nil {
				return
			}
		}
	}
}

func (s *Server) push(ctx context.Context, conn *websocket.Conn, status domain.BatchStatus) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	err := wsjson.Write(ctx, conn, status)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug(ctx, "stream write failed", "error", err)
	}
	return err
}
