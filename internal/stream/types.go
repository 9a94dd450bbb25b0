package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with its local receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// controlFrame is an outbound subscribe/unsubscribe/ping/pong frame.
type controlFrame struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

// envelope carries the type discriminator of an inbound frame.
type envelope struct {
	Type string `json:"type"`
}

// tradeFrame is an inbound trade batch: one frame, one or more prints.
type tradeFrame struct {
	Type string      `json:"type"`
	Data []tradeWire `json:"data"`
}

// tradeWire is one trade print on the wire.
type tradeWire struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Volume    int64   `json:"v"`
	Timestamp int64   `json:"t"` // Milliseconds since epoch
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://stream.marketdesk.io/v1)
	Token        string        // Bearer credential, sent as the token query parameter; empty dials unauthenticated
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 5 * time.Second,
		BufferSize:   1024,
	}
}
