package featurefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"mmlens/internal/domain/models"
	drepo "mmlens/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a FeatureStream backed by the vendor's WebSocket feed.
type Client struct {
	apiKey         string
	websocketURL   string
	tickers        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new feature feed FeatureStream.
func New(apiKey, websocketURL string, tickers []string, reconnectDelay, pingInterval time.Duration) drepo.FeatureStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		tickers:        tickers,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("featurefeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("featurefeed: connected")
	return nil
}

// Subscribe subscribes to configured tickers.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("featurefeed not connected")
	}
	for _, tk := range c.tickers {
		msg := map[string]string{"type": "subscribe", "ticker": tk}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", tk, err)
		}
		log.Printf("featurefeed: subscribed %s", tk)
	}
	return nil
}

type ffRecord struct {
	Ticker  string   `json:"ticker"`
	Feature string   `json:"feature"`
	Date    string   `json:"date"`
	Value   *float64 `json:"value"` // null marks a missing observation
}

type ffMessage struct {
	Type string     `json:"type"`
	Data []ffRecord `json:"data"`
}

// Read streams feature records and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.FeatureRecord, <-chan error) {
	records := make(chan *models.FeatureRecord, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(records)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("featurefeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("featurefeed read: %w", err)
					return
				}
				var m ffMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-data frames
					continue
				}
				if m.Type != "features" {
					continue
				}
				for _, d := range m.Data {
					value := math.NaN()
					if d.Value != nil {
						value = *d.Value
					}
					rec := &models.FeatureRecord{
						Ticker:  d.Ticker,
						Feature: d.Feature,
						Date:    d.Date,
						Value:   value,
					}
					select {
					case records <- rec:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return records, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
