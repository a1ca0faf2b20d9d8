package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"priceline/internal/chart"
	"priceline/internal/config"
	"priceline/internal/depth"
	"priceline/internal/overlay"
	"priceline/internal/state"
)

// Overlay is the lifecycle and status surface of the attached indicator.
type Overlay interface {
	OnActivate()
	OnDeactivate()
	Active() bool
	Snapshot() depth.MarketSnapshot
	Stats() overlay.SchedulerStats
	Config() overlay.DisplayConfig
}

// SymbolFeed is the part of the feed the API can steer.
type SymbolFeed interface {
	SubscribeSymbol(symbol string) error
	Connected() bool
}

// Canvas is the chart host as seen by clients.
type Canvas interface {
	Viewport() chart.Viewport
	SetViewport(vp chart.Viewport) error
	LastFrame() chart.Frame
	RequestRedraw()
}

type HTTPServer struct {
	cfg    config.Config
	st     *state.State
	ov     Overlay
	feed   SymbolFeed
	canvas Canvas
	hub    *hub
	log    *slog.Logger
	mux    *http.ServeMux
}

func NewHTTPServer(cfg config.Config, st *state.State, ov Overlay, feed SymbolFeed, canvas Canvas, logger *slog.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg:    cfg,
		st:     st,
		ov:     ov,
		feed:   feed,
		canvas: canvas,
		hub:    newHub(logger),
		log:    logger.With(slog.String("component", "http")),
		mux:    http.NewServeMux(),
	}
	s.hub.onJoin = func(*client) {
		s.BroadcastStatus()
		if f := s.canvas.LastFrame(); f.Seq > 0 {
			s.BroadcastFrame(f)
		}
	}
	s.hub.onMessage = s.handleWS
	s.routes()
	go s.hub.run()
	return s
}

func (s *HTTPServer) Router() http.Handler { return s.mux }

// Close disconnects every websocket client.
func (s *HTTPServer) Close() { s.hub.stop() }

// --------- WS broadcasts ----------

func (s *HTTPServer) BroadcastStatus() {
	s.hub.publish(marshalWS("status", s.status()))
}

// BroadcastFrame publishes a repaint of the chart host.
func (s *HTTPServer) BroadcastFrame(f chart.Frame) {
	s.st.FramePublished(f.At)
	s.hub.publish(marshalWS("frame", f))
}

func (s *HTTPServer) BroadcastError(msg string) {
	s.hub.publish(marshalWS("error", map[string]string{"message": msg}))
}

// handleWS accepts viewport updates from the page: a resize is a host repaint.
func (s *HTTPServer) handleWS(c *client, msg wsMessage) {
	switch msg.Type {
	case "viewport":
		var req viewportReq
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		if err := s.applyViewport(req); err != nil {
			s.log.Debug("viewport rejected", slog.String("client", c.id), slog.String("err", err.Error()))
		}
	}
}

// --------- Routes ----------

func (s *HTTPServer) routes() {
	// SPA
	s.mux.HandleFunc("/", s.serveStatic("index.html", "text/html; charset=utf-8"))
	s.mux.HandleFunc("/index.html", s.serveStatic("index.html", "text/html; charset=utf-8"))
	s.mux.HandleFunc("/app.js", s.serveStatic("app.js", "text/javascript; charset=utf-8"))
	s.mux.HandleFunc("/styles.css", s.serveStatic("styles.css", "text/css; charset=utf-8"))

	// WS
	s.mux.HandleFunc("/ws", s.hub.serveWS)

	// API
	s.mux.HandleFunc("/api/health", s.apiHealth)
	s.mux.HandleFunc("/api/config", s.apiConfig)
	s.mux.HandleFunc("/api/status", s.apiStatus)
	s.mux.HandleFunc("/api/frame", s.apiFrame)
	s.mux.HandleFunc("/api/start", s.apiStart)
	s.mux.HandleFunc("/api/stop", s.apiStop)
	s.mux.HandleFunc("/api/viewport", s.apiViewport)
}

func (s *HTTPServer) serveStatic(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && !strings.HasSuffix(r.URL.Path, name) {
			http.NotFound(w, r)
			return
		}
		b, err := os.ReadFile(filepath.Join(s.cfg.WebDir, name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(b)
	}
}

type snapshotView struct {
	HasData   bool               `json:"hasData"`
	Bids      []depth.PriceLevel `json:"bids"`
	Asks      []depth.PriceLevel `json:"asks"`
	LastPrice *float64           `json:"lastPrice"` // null until a finite print
}

func viewSnapshot(snap depth.MarketSnapshot) snapshotView {
	v := snapshotView{HasData: snap.HasData, Bids: snap.Bids, Asks: snap.Asks}
	if snap.HasLastPrice() {
		last := snap.LastPrice
		v.LastPrice = &last
	}
	return v
}

func (s *HTTPServer) status() map[string]any {
	return map[string]any{
		"connected": s.st.Connected(),
		"streaming": s.feed.Connected(),
		"symbol":    s.st.Symbol(),
		"active":    s.ov.Active(),
		"frames":    s.st.Frames(),
	}
}

func (s *HTTPServer) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":        true,
		"connected": s.feed.Connected(),
	})
}

func (s *HTTPServer) apiConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"display":          s.ov.Config(),
		"updateIntervalMs": s.cfg.UpdateIntervalMS,
		"barSeconds":       s.cfg.BarSeconds,
		"levels":           s.cfg.Levels,
		"marginBars":       s.cfg.Chart.MarginBars,
	})
}

func (s *HTTPServer) apiStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	st["snapshot"] = viewSnapshot(s.ov.Snapshot())
	st["scheduler"] = s.ov.Stats()
	if at := s.st.LastFrameAt(); !at.IsZero() {
		st["lastFrameISO"] = at.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, st)
}

func (s *HTTPServer) apiFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.canvas.LastFrame())
}

// POST /api/start { "symbol": "AAPL" } attaches the overlay to symbol.
func (s *HTTPServer) apiStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	sym := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if sym == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}

	// one instrument at a time: detach before switching
	s.ov.OnDeactivate()
	s.canvas.RequestRedraw()
	if err := s.feed.SubscribeSymbol(sym); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.st.SetSymbol(sym)
	s.ov.OnActivate()
	s.log.Info("overlay attached", slog.String("symbol", sym))

	s.BroadcastStatus()
	writeJSON(w, map[string]any{"ok": true, "symbol": s.st.Symbol()})
}

func (s *HTTPServer) apiStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	s.ov.OnDeactivate()
	// repaint without the overlay so clients drop its lines
	s.canvas.RequestRedraw()
	s.BroadcastStatus()
	writeJSON(w, map[string]any{"ok": true})
}

type viewportReq struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	BarSpacing float64 `json:"barSpacing"`
	PriceHigh  float64 `json:"priceHigh"`
	PriceLow   float64 `json:"priceLow"`
}

// applyViewport merges the non-zero fields of req into the current viewport.
func (s *HTTPServer) applyViewport(req viewportReq) error {
	vp := s.canvas.Viewport()
	if req.Width > 0 {
		vp.Width = req.Width
	}
	if req.Height > 0 {
		vp.Height = req.Height
	}
	if req.BarSpacing > 0 {
		vp.BarSpacing = req.BarSpacing
	}
	if req.PriceHigh != 0 || req.PriceLow != 0 {
		vp.PriceHigh, vp.PriceLow = req.PriceHigh, req.PriceLow
	}
	return s.canvas.SetViewport(vp)
}

// POST /api/viewport { "width": 900, "height": 500 }
func (s *HTTPServer) apiViewport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req viewportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.applyViewport(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "viewport": s.canvas.Viewport()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
