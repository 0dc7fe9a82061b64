package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/goroutine"
	"github.com/ignatzorin/freelance-payments/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBuffer     = 16
	maxInboundSize = 4 * 1024
)

var frameSeparator = []byte{'\n'}

// Client одно WebSocket подключение пользователя. Канал событий только исходящий:
// входящие кадры читаются ради pong и закрытия.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	userID    uuid.UUID
	send      chan []byte
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}
}

// Run регистрирует клиента в хабе и блокируется, пока соединение живо или ctx не отменён.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	goroutine.SafeGo(func() {
		defer c.Close()
		c.writeLoop()
	})
	c.readLoop()
}

// Close снимает клиента с хаба и закрывает сокет. Безопасен для повторного вызова.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer c.Close()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithFields(logrus.Fields{"user_id": c.userID, "error": err}).Debug("ws: соединение оборвано")
			}
			return
		}
	}
}

// writeLoop пишет кадры из очереди. Накопившиеся кадры уходят одним сообщением через перевод строки.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.writeFrames(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeFrames(first []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(first); err != nil {
		return err
	}
	for pending := len(c.send); pending > 0; pending-- {
		frame, ok := <-c.send
		if !ok {
			break
		}
		_, _ = w.Write(frameSeparator)
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return w.Close()
}

func (c *Client) writeControl(kind int, payload []byte) error {
	return c.conn.WriteControl(kind, payload, time.Now().Add(writeWait))
}
