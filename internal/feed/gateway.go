package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"priceline/internal/depth"
)

// fieldLast is the Client Portal market-data field id for the last trade price.
const fieldLast = "31"

// GatewayFeed keeps the latest book and last trade for one symbol from the
// Client Portal Gateway websocket. Messages are pushed by the gateway; the
// overlay pulls the latest values through the accessor methods, which never block.
// It reconnects and resubscribes on its own.
type GatewayFeed struct {
	client *Client
	log    *slog.Logger
	agg    *depth.Aggregator
	bars   *BarClock

	mu        sync.RWMutex
	symbol    string
	conid     int64
	acctID    string
	connected bool
	bids      []depth.PriceLevel
	asks      []depth.PriceLevel
	last      float64
	wsConn    *websocket.Conn

	errCh chan error

	ctx    context.Context
	cancel context.CancelFunc
}

func NewGatewayFeed(client *Client, agg *depth.Aggregator, bars *BarClock, logger *slog.Logger) *GatewayFeed {
	return &GatewayFeed{
		client: client,
		log:    logger.With(slog.String("component", "gateway_feed")),
		agg:    agg,
		bars:   bars,
		last:   math.NaN(),
		errCh:  make(chan error, 16),
	}
}

// Connected reports an open websocket with an active subscription.
func (f *GatewayFeed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected && f.conid != 0
}

func (f *GatewayFeed) BidLevels() []depth.PriceLevel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bids
}

func (f *GatewayFeed) AskLevels() []depth.PriceLevel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.asks
}

func (f *GatewayFeed) LastTradePrice() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last
}

func (f *GatewayFeed) CurrentBarTime() time.Time { return f.bars.Current() }
func (f *GatewayFeed) LastBarTime() time.Time    { return f.bars.Last() }

func (f *GatewayFeed) Errors() <-chan error { return f.errCh }

func (f *GatewayFeed) Symbol() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.symbol
}

func (f *GatewayFeed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// SubscribeSymbol switches the feed to symbol. The current socket is closed
// and the run loop resubscribes on reconnect.
func (f *GatewayFeed) SubscribeSymbol(symbol string) error {
	canon := strings.ToUpper(strings.TrimSpace(symbol))
	if canon == "" {
		return fmt.Errorf("empty symbol")
	}
	f.mu.Lock()
	f.symbol = canon
	f.conid = 0
	f.bids, f.asks, f.last = nil, nil, math.NaN()
	ws := f.wsConn
	f.mu.Unlock()
	if ws != nil {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "resub"))
		_ = ws.Close()
	}
	return nil
}

// Close stops the run loop. The error channel is closed once Run returns.
func (f *GatewayFeed) Close() {
	f.mu.RLock()
	cancel, ws := f.cancel, f.wsConn
	f.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if ws != nil {
		_ = ws.Close()
	}
}

// Run connects, subscribes and reads until ctx is done, reconnecting with
// exponential backoff. onStatus is called on every connection change.
func (f *GatewayFeed) Run(ctx context.Context, onStatus func(connected bool)) error {
	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return fmt.Errorf("feed already running")
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()
	defer close(f.errCh)

	backoff := time.Second
	fail := func(err error) { f.fail(f.ctx, err, onStatus, &backoff) }

	for {
		if f.ctx.Err() != nil {
			return nil
		}

		if err := f.client.Connect(f.ctx); err != nil {
			fail(fmt.Errorf("connect: %w", err))
			continue
		}

		acctID, err := f.client.GetAccountID(f.ctx)
		if err != nil {
			fail(fmt.Errorf("get account id: %w", err))
			continue
		}
		f.mu.Lock()
		f.acctID = acctID
		f.mu.Unlock()

		if sym := f.Symbol(); sym != "" {
			conid, err := f.client.ConidForSymbol(f.ctx, sym)
			if err != nil {
				fail(fmt.Errorf("secdef for %s: %w", sym, err))
				continue
			}
			f.mu.Lock()
			f.conid = conid
			f.mu.Unlock()
		}

		ws, err := f.openWS()
		if err != nil {
			fail(fmt.Errorf("ws open: %w", err))
			continue
		}
		f.mu.Lock()
		f.wsConn = ws
		conid := f.conid
		f.mu.Unlock()
		f.setConnected(true)
		onStatus(true)
		backoff = time.Second

		if conid != 0 {
			if err := f.subscribe(ws, conid); err != nil {
				_ = ws.Close()
				fail(fmt.Errorf("subscribe: %w", err))
				continue
			}
			f.log.Info("subscribed", slog.String("symbol", f.Symbol()), slog.Int64("conid", conid))
		}

		if err := f.readLoop(ws); err != nil {
			onStatus(false)
			f.setConnected(false)
			f.emitErr(err)
		}
	}
}

// fail marks the feed down, reports err and waits out the backoff, which
// then doubles up to 30s.
func (f *GatewayFeed) fail(ctx context.Context, err error, onStatus func(bool), backoff *time.Duration) {
	f.setConnected(false)
	onStatus(false)
	f.emitErr(err)
	select {
	case <-ctx.Done():
	case <-time.After(*backoff):
	}
	*backoff = min(*backoff*2, 30*time.Second)
}

func (f *GatewayFeed) openWS() (*websocket.Conn, error) {
	u, err := url.Parse(f.client.BaseURL())
	if err != nil {
		return nil, err
	}
	u.Scheme = "wss"
	u.Path = "/v1/api/ws"
	d := websocket.Dialer{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 local gateway
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, "tcp4", addr)
		},
		HandshakeTimeout: 10 * time.Second,
	}
	ws, _, err := d.DialContext(f.ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	sid, _ := f.client.RefreshSessionID(f.ctx)
	if sid == "" {
		sid = f.client.SessionID()
	}
	if sid != "" {
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"session":"`+sid+`"}`))
	}
	return ws, nil
}

// subscribe requests book depth and the last-price field for conid.
func (f *GatewayFeed) subscribe(ws *websocket.Conn, conid int64) error {
	f.mu.RLock()
	acct := f.acctID
	f.mu.RUnlock()
	// newer gateway builds want the account id in the depth topic
	if acct != "" {
		_ = ws.WriteMessage(websocket.TextMessage, []byte(
			fmt.Sprintf("sbd+%s+%d+SMART", acct, conid),
		))
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte(
		fmt.Sprintf("sbd+%d+SMART", conid),
	)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, []byte(
		fmt.Sprintf(`smd+%d+{"fields":["%s"]}`, conid, fieldLast),
	))
}

type bookRow struct {
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Size     int     `json:"size"`
	Venue    string  `json:"venue"`
	Exchange string  `json:"exchange"`
	Level    int     `json:"level"`
}

type inboundWS struct {
	Topic string    `json:"topic"`
	Conid int64     `json:"conid"`
	Rows  []bookRow `json:"rows"`
	Data  []bookRow `json:"data"`
	Last  string    `json:"31"`
}

func (f *GatewayFeed) readLoop(ws *websocket.Conn) error {
	defer ws.Close()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			case <-stopPing:
				return
			}
		}
	}()

	for {
		if f.ctx.Err() != nil {
			return nil
		}
		_, data, err := ws.ReadMessage()
		if err != nil {
			if f.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws read: %w", err)
		}
		_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		f.handleMessage(data, time.Now())
	}
}

// handleMessage applies one gateway message. Acks, heartbeats and anything
// that does not parse are ignored.
func (f *GatewayFeed) handleMessage(data []byte, now time.Time) {
	var msg inboundWS
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if msg.Last != "" {
		if px, ok := parseLast(msg.Last); ok {
			f.mu.Lock()
			f.last = px
			f.mu.Unlock()
			f.bars.Observe(now)
		}
	}

	rows := msg.Rows
	if len(rows) == 0 {
		rows = msg.Data
	}
	if len(rows) == 0 {
		return
	}
	up := depth.Update{Symbol: f.Symbol()}
	for _, r := range rows {
		vr := depth.VenueRow{
			Side:  strings.ToUpper(r.Side),
			Price: decimal.NewFromFloat(r.Price),
			Size:  r.Size,
			Venue: r.Venue,
			Level: r.Level,
		}
		if vr.Venue == "" {
			vr.Venue = r.Exchange
		}
		switch vr.Side {
		case depth.SideAsk:
			up.Asks = append(up.Asks, vr)
		case depth.SideBid:
			up.Bids = append(up.Bids, vr)
		}
	}
	bids, asks := f.agg.Levels(up)
	f.mu.Lock()
	if bids != nil {
		f.bids = bids
	}
	if asks != nil {
		f.asks = asks
	}
	f.mu.Unlock()
}

// parseLast reads a market-data price field. The gateway prefixes "C" for a
// prior close and "H" for a halted instrument.
func parseLast(s string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimLeft(strings.TrimSpace(s), "CH"))
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func (f *GatewayFeed) emitErr(err error) {
	select {
	case f.errCh <- err:
	default:
		// drop if buffer full
	}
}
