package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

// QuoteFetcher supplies quote snapshots for seeding freshly subscribed
// symbols with a price and previous close. *provider.Pool satisfies it.
type QuoteFetcher interface {
	Quotes(ctx context.Context, symbols []string) ([]model.Quote, error)
}

// Session owns the tick stream connection lifecycle and the desired
// subscription set. State transitions and parsed ticks flow into the store;
// callers never see transport errors.
type Session struct {
	cfg    config.StreamConfig
	store  *store.Store
	fetch  QuoteFetcher // nil disables quote seeding
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	desired  map[string]struct{}
	client   Client
	state    model.SessionState
	attempts int
}

// NewSession creates a session. The store receives every state change and
// every parsed tick. A nil fetcher disables quote seeding on subscribe.
func NewSession(cfg config.StreamConfig, st *store.Store, fetch QuoteFetcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = config.DefaultHeartbeatInterval
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = config.DefaultReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = config.DefaultReconnectMaxDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = config.DefaultMaxReconnectAttempts
	}

	return &Session{
		cfg:     cfg,
		store:   st,
		fetch:   fetch,
		logger:  logger,
		desired: make(map[string]struct{}),
		state:   model.StateDisconnected,
	}
}

// Start launches the connection loop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.logger.Info("stream session started",
		"url", s.cfg.URL,
		"heartbeat_interval", s.cfg.HeartbeatInterval,
	)
	return nil
}

// Stop shuts the session down, closing the connection and aborting any
// in-flight backoff.
func (s *Session) Stop(ctx context.Context) error {
	s.logger.Info("stopping stream session")

	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil {
		client.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stream session stopped")
	case <-ctx.Done():
		s.logger.Warn("stream session stop timed out")
	}

	s.transition(model.StateDisconnected, 0)
	return nil
}

// State returns the current connection state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe idempotently adds symbol to the desired set, sends a subscribe
// frame when LIVE, and seeds the symbol's quote from the fetcher.
func (s *Session) Subscribe(symbol string) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return
	}

	s.mu.Lock()
	if _, ok := s.desired[symbol]; ok {
		s.mu.Unlock()
		return
	}
	s.desired[symbol] = struct{}{}
	count := len(s.desired)
	client := s.client
	live := s.state == model.StateLive
	s.mu.Unlock()

	s.store.Update(func(tx *store.Tx) { tx.SetSubscribedCount(count) })

	if live && client != nil {
		if err := s.sendControl(client, "subscribe", symbol); err != nil {
			s.logger.Warn("subscribe frame failed", "symbol", symbol, "error", err)
		}
	}
	s.seedQuote(symbol)
}

// Unsubscribe idempotently removes symbol from the desired set and sends an
// unsubscribe frame when LIVE.
func (s *Session) Unsubscribe(symbol string) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return
	}

	s.mu.Lock()
	if _, ok := s.desired[symbol]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.desired, symbol)
	count := len(s.desired)
	client := s.client
	live := s.state == model.StateLive
	s.mu.Unlock()

	s.store.Update(func(tx *store.Tx) { tx.SetSubscribedCount(count) })

	if live && client != nil {
		if err := s.sendControl(client, "unsubscribe", symbol); err != nil {
			s.logger.Warn("unsubscribe frame failed", "symbol", symbol, "error", err)
		}
	}
}

// Subscribed returns the desired set, sorted.
func (s *Session) Subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.desired))
	for sym := range s.desired {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// SessionStats summarizes the session for status output.
type SessionStats struct {
	State      model.SessionState
	Attempts   int
	Subscribed int
}

// Stats returns a snapshot of session state.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		State:      s.state,
		Attempts:   s.attempts,
		Subscribed: len(s.desired),
	}
}

// run is the connection loop: connect, serve until the transport fails,
// back off, retry. Exits on shutdown or after the reconnect budget is spent.
func (s *Session) run() {
	defer s.wg.Done()

	attempts := 0
	delay := s.cfg.ReconnectBaseDelay

	for s.ctx.Err() == nil {
		s.transition(model.StateConnecting, attempts)

		client := NewClient(ClientConfig{
			URL:   s.cfg.URL,
			Token: s.cfg.Token,
		}, s.logger)

		if err := client.Connect(s.ctx); err != nil {
			attempts++
			s.logger.Warn("stream connect failed", "attempt", attempts, "error", err)
			if attempts >= s.cfg.MaxReconnectAttempts {
				s.transition(model.StateOffline, attempts)
				s.logger.Error("stream offline, reconnect attempts exhausted", "attempts", attempts)
				return
			}
			s.transition(model.StateDisconnected, attempts)
			if !s.sleep(delay) {
				return
			}
			delay = s.nextDelay(delay)
			continue
		}

		attempts = 0
		delay = s.cfg.ReconnectBaseDelay

		s.attachClient(client)
		s.transition(model.StateLive, 0)
		s.resubscribe(client)

		s.serve(client)

		client.Close()
		s.detachClient()

		if s.ctx.Err() != nil {
			return
		}
		s.transition(model.StateDisconnected, 0)
		if !s.sleep(delay) {
			return
		}
		delay = s.nextDelay(delay)
	}
}

// serve pumps one live connection: inbound frames, app-level pings, and the
// heartbeat watchdog. Returns when the transport fails or shutdown begins.
func (s *Session) serve(client Client) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	lastTraffic := time.Now()
	s.store.Update(func(tx *store.Tx) { tx.SetHeartbeat(lastTraffic) })

	for {
		select {
		case <-s.ctx.Done():
			return

		case err := <-client.Errors():
			s.logger.Warn("stream transport error", "error", err)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			lastTraffic = msg.ReceivedAt
			s.handleMessage(client, msg)
			if s.State() == model.StateDegraded {
				s.logger.Info("stream traffic resumed")
				s.transition(model.StateLive, 0)
				s.resubscribe(client)
			}

		case <-ticker.C:
			if err := s.sendControl(client, "ping", ""); err != nil {
				s.logger.Warn("ping send failed", "error", err)
				return
			}
			if time.Since(lastTraffic) > 2*s.cfg.HeartbeatInterval && s.State() == model.StateLive {
				s.logger.Warn("stream heartbeat missed", "last_traffic", lastTraffic)
				s.transition(model.StateDegraded, 0)
			}
		}
	}
}

// handleMessage parses one inbound frame and applies it.
func (s *Session) handleMessage(client Client, msg TimestampedMessage) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.logger.Warn("malformed frame", "error", err)
		return
	}

	switch env.Type {
	case "trade":
		s.handleTrade(msg)

	case "ping":
		if err := s.sendControl(client, "pong", ""); err != nil {
			s.logger.Warn("pong send failed", "error", err)
		}
		s.store.Update(func(tx *store.Tx) { tx.SetHeartbeat(msg.ReceivedAt) })

	case "pong":
		s.store.Update(func(tx *store.Tx) { tx.SetHeartbeat(msg.ReceivedAt) })

	default:
		s.logger.Debug("skipping frame type", "type", env.Type)
	}
}

// handleTrade appends one trade batch to the store as a single update.
// Item-level junk is skipped; only a broken root shape drops the frame.
func (s *Session) handleTrade(msg TimestampedMessage) {
	var frame tradeFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("malformed trade frame", "error", err)
		return
	}
	if len(frame.Data) == 0 {
		return
	}

	s.store.Update(func(tx *store.Tx) {
		for _, w := range frame.Data {
			if w.Symbol == "" || w.Price <= 0 || w.Timestamp <= 0 {
				s.logger.Debug("skipping malformed trade print", "symbol", w.Symbol)
				continue
			}
			tk := model.Tick{
				Symbol:    strings.ToUpper(w.Symbol),
				Price:     w.Price,
				Volume:    w.Volume,
				Timestamp: w.Timestamp,
				Source:    model.SourceStream,
			}
			if tx.AppendTick(tk) {
				tx.QuoteFromTick(tk)
			}
		}
	})
}

// resubscribe replays the full desired set after a transition to LIVE.
func (s *Session) resubscribe(client Client) {
	symbols := s.Subscribed()
	for _, sym := range symbols {
		if err := s.sendControl(client, "subscribe", sym); err != nil {
			s.logger.Warn("resubscribe failed", "symbol", sym, "error", err)
			return
		}
	}
	if len(symbols) > 0 {
		s.logger.Info("resubscribed", "count", len(symbols))
	}
}

// seedQuote fetches the symbol's quote snapshot once, off the caller's
// goroutine, so Subscribe never blocks on provider I/O.
func (s *Session) seedQuote(symbol string) {
	if s.fetch == nil {
		return
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		quotes, err := s.fetch.Quotes(fctx, []string{symbol})
		if err != nil {
			s.logger.Warn("quote seed failed", "symbol", symbol, "error", err)
			return
		}
		if len(quotes) == 0 {
			return
		}
		s.store.Update(func(tx *store.Tx) {
			for _, q := range quotes {
				tx.PutQuote(q)
			}
		})
	}()
}

// sendControl marshals and sends one control frame.
func (s *Session) sendControl(client Client, typ, symbol string) error {
	data, err := json.Marshal(controlFrame{Type: typ, Symbol: symbol})
	if err != nil {
		return err
	}
	return client.Send(data)
}

// transition records a state change locally and in the store.
func (s *Session) transition(state model.SessionState, attempts int) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.attempts = attempts
	s.mu.Unlock()

	if prev != state {
		s.logger.Info("stream state changed", "from", prev, "to", state)
	}
	s.store.Update(func(tx *store.Tx) { tx.SetSessionState(state, attempts) })
}

func (s *Session) attachClient(client Client) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
}

func (s *Session) detachClient() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

// sleep waits for d or for shutdown, whichever comes first.
func (s *Session) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > s.cfg.ReconnectMaxDelay {
		d = s.cfg.ReconnectMaxDelay
	}
	return d
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
