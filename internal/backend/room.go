package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"interviewroom/internal/domain"
)

const roomWriteTimeout = 5 * time.Second

// RoomSignal publishes interview progress on the room websocket so an
// interviewer view can follow along.
type RoomSignal struct {
	conn        *websocket.Conn
	interviewID string
	logger      *log.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// DialRoom connects to the room websocket and announces the candidate.
func DialRoom(ctx context.Context, roomURL string, token string, interviewID string, logger *log.Logger) (*RoomSignal, error) {
	if logger == nil {
		logger = log.Default()
	}
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, roomURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to room websocket: %w", err)
	}

	room := &RoomSignal{
		conn:        conn,
		interviewID: interviewID,
		logger:      logger.With("component", "room"),
		done:        make(chan struct{}),
	}
	go room.drain()

	join := domain.RoomMessage{
		Type:        domain.RoomMessageJoin,
		InterviewID: interviewID,
		Role:        "candidate",
		Timestamp:   time.Now(),
	}
	if err := room.Send(ctx, join); err != nil {
		_ = room.Close()
		return nil, err
	}
	return room, nil
}

func (r *RoomSignal) Send(ctx context.Context, msg domain.RoomMessage) error {
	select {
	case <-r.done:
		return errors.New("room connection closed")
	default:
	}
	if msg.InterviewID == "" {
		msg.InterviewID = r.interviewID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	deadline := time.Now().Add(roomWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("room write deadline: %w", err)
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("room send %s: %w", msg.Type, err)
	}
	return nil
}

func (r *RoomSignal) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.writeMu.Lock()
		_ = r.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		r.writeMu.Unlock()
		err = r.conn.Close()
	})
	<-r.done
	return err
}

// drain reads and discards inbound messages so control frames are handled.
func (r *RoomSignal) drain() {
	defer close(r.done)
	for {
		if _, _, err := r.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Debug("room connection ended", "error", err)
			}
			return
		}
	}
}
