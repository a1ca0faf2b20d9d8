package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Client talks to the Client Portal Gateway REST API and keeps the session
// cookies on disk between runs.
type Client struct {
	baseURL string
	jar     *cookiejar.Jar
	httpc   *http.Client
	logger  *slog.Logger

	mu        sync.Mutex
	acctID    string
	sessionID string

	sessionPath string
}

func NewClient(baseURL, sessionStorePath string, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	// CP Gateway on 127.0.0.1: self-signed cert; allow insecure for local dev
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 local gateway
	}
	httpc := &http.Client{Jar: jar, Transport: tr, Timeout: 15 * time.Second}
	return &Client{
		baseURL:     baseURL,
		jar:         jar,
		httpc:       httpc,
		logger:      logger,
		sessionPath: sessionStorePath,
	}
}

type cookieDump struct {
	Cookies []*http.Cookie `json:"cookies"`
}

func (c *Client) loadSession() {
	b, err := os.ReadFile(c.sessionPath)
	if err != nil {
		return
	}
	var dump cookieDump
	if err := json.Unmarshal(b, &dump); err != nil {
		c.logger.Warn("session file unreadable", slog.String("path", c.sessionPath), slog.String("err", err.Error()))
		return
	}
	u, _ := url.Parse(c.baseURL)
	c.jar.SetCookies(u, dump.Cookies)
}

func (c *Client) saveSession() {
	u, _ := url.Parse(c.baseURL)
	if err := WriteSession(c.sessionPath, c.jar.Cookies(u)); err != nil {
		c.logger.Warn("session save failed", slog.String("err", err.Error()))
	}
}

// WriteSession stores cookies in the session file format the Client reads.
func WriteSession(path string, cookies []*http.Cookie) error {
	b, err := json.MarshalIndent(cookieDump{Cookies: cookies}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), fs.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// InjectCookies adds externally obtained cookies (e.g. from a browser) to the
// jar and persists them.
func (c *Client) InjectCookies(cookies []*http.Cookie) {
	u, _ := url.Parse(c.baseURL)
	c.jar.SetCookies(u, cookies)
	c.saveSession()
}

func (c *Client) url(p string) string {
	return fmt.Sprintf("%s%s", c.baseURL, p)
}

// Connect loads the saved session and checks that the gateway reports it as
// authenticated.
func (c *Client) Connect(ctx context.Context) error {
	c.loadSession()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/api/iserver/auth/status"), nil)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}

	var v map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return fmt.Errorf("decode auth status: %w", err)
	}
	auth, _ := v["authenticated"].(bool)
	if !auth {
		return errors.New("not authenticated in Client Portal Gateway. Open the Gateway UI and sign in, then retry")
	}

	c.saveSession()
	return nil
}

// RefreshSessionID tickles the gateway to keep the session alive and returns
// the session id the websocket must present.
func (c *Client) RefreshSessionID(ctx context.Context) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/api/tickle"), nil)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tickle status %d", resp.StatusCode)
	}
	var v struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decode tickle: %w", err)
	}
	if v.Session == "" {
		return "", errors.New("tickle returned no session")
	}
	c.mu.Lock()
	c.sessionID = v.Session
	c.mu.Unlock()
	return v.Session, nil
}

// SessionID returns the last session id seen by RefreshSessionID.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// GetAccountID fetches and caches the first available accountId.
// Some book-depth topics require it.
func (c *Client) GetAccountID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.acctID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/api/portfolio/accounts"), nil)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("accounts status %d", resp.StatusCode)
	}
	var results []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errors.New("no accounts found")
	}
	acct, ok := results[0]["accountId"].(string)
	if !ok || acct == "" {
		return "", errors.New("invalid accountId")
	}
	c.mu.Lock()
	c.acctID = acct
	c.mu.Unlock()
	return acct, nil
}

// ConidForSymbol maps a stock symbol to its contract id. Picks the first STK result.
func (c *Client) ConidForSymbol(ctx context.Context, symbol string) (int64, error) {
	q := url.QueryEscape(symbol)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/api/iserver/secdef/search?symbol="+q), nil)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("secdef search status %d", resp.StatusCode)
	}
	var results []struct {
		Conid   int64  `json:"conid"`
		SecType string `json:"secType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, err
	}
	for _, r := range results {
		if r.SecType == "STK" {
			return r.Conid, nil
		}
	}
	return 0, fmt.Errorf("no STK contract found for %s", symbol)
}

func (c *Client) BaseURL() string { return c.baseURL }
