package agentstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	applogger "ZigmaPulse/pkg/logger"
)

// Client implements a LogStream backed by the agent's WebSocket log feed.
type Client struct {
	url            string
	token          string
	agents         []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	mu        sync.Mutex // guards conn writes and connected
	conn      *websocket.Conn
	connected bool
}

// New creates a new agent LogStream.
func New(url, token string, agents []string, reconnectDelay, pingInterval time.Duration) drepo.LogStream {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		url:            url,
		token:          token,
		agents:         agents,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         applogger.Nop(),
	}
}

func (c *Client) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	hdr := http.Header{}
	if c.token != "" {
		hdr.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, hdr)
	if err != nil {
		return fmt.Errorf("agentstream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("agentstream.connect ok", applogger.String("url", c.url))
	return nil
}

type subscribeFrame struct {
	Type  string `json:"type"`
	Agent string `json:"agent"`
}

// Subscribe asks for the log lines of every configured agent.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return errors.New("agentstream not connected")
	}
	for _, a := range c.agents {
		if err := c.conn.WriteJSON(subscribeFrame{Type: "subscribe", Agent: a}); err != nil {
			return fmt.Errorf("subscribe %s: %w", a, err)
		}
		c.logger.Info("agentstream.subscribe ok", applogger.String("agent", a))
	}
	return nil
}

type logFrame struct {
	Type  string   `json:"type"`
	Agent string   `json:"agent"`
	Seq   uint64   `json:"seq"`
	Line  string   `json:"line"`
	Lines []string `json:"lines"`
	TS    int64    `json:"ts"` // ms
}

// Read streams log lines and errors until ctx is done or the socket fails.
func (c *Client) Read(ctx context.Context) (<-chan *models.LogLine, <-chan error) {
	lines := make(chan *models.LogLine, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.conn != nil {
					_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.mu.Unlock()
			}
		}
	}()

	go func() {
		defer close(lines)
		defer close(errs)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			errs <- errors.New("agentstream conn nil")
			return
		}
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("agentstream read: %w", err)
				}
				return
			}
			var f logFrame
			if err := json.Unmarshal(b, &f); err != nil || f.Type != "log" {
				continue
			}
			received := time.Now().UTC()
			if f.TS > 0 {
				received = time.UnixMilli(f.TS).UTC()
			}
			texts := f.Lines
			if f.Line != "" {
				texts = append([]string{f.Line}, texts...)
			}
			for i, t := range texts {
				l := &models.LogLine{Agent: f.Agent, Seq: f.Seq + uint64(i), Text: t, ReceivedAt: received}
				select {
				case lines <- l:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return lines, errs
}

// Reconnect closes, waits reconnectDelay and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
