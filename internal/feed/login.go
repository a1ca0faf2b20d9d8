package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// LoginOptions controls the interactive gateway sign-in.
type LoginOptions struct {
	Paper       bool          // paper account (RL=2) instead of live
	Headless    bool          // false shows the window so 2FA can be completed
	Wait        time.Duration // overall timeout; zero uses loginWait()
	UserDataDir string        // optional Chrome profile dir
	Quiet       bool          // drop chromedp's own log output
}

func loginWait() time.Duration {
	if s := os.Getenv("PRICELINE_LOGIN_WAIT_SECONDS"); s != "" {
		if d, err := time.ParseDuration(s + "s"); err == nil && d > 0 {
			return d
		}
	}
	return 8 * time.Minute
}

func loginURL(baseURL string, paper bool) string {
	rl := 1
	if paper {
		rl = 2
	}
	return fmt.Sprintf("%s/sso/Login?forwardTo=22&RL=%d&ip2loc=on", strings.TrimRight(baseURL, "/"), rl)
}

// authPollJS asks the gateway for its auth status from inside the page, so the
// browser's HttpOnly cookies are used. It resolves to the status body once
// authenticated, or "" after roughly a minute.
const authPollJS = `
(async () => {
  const sleep = (ms) => new Promise(r => setTimeout(r, ms));
  try { await fetch('/v1/api/tickle', { method: 'POST', credentials: 'include' }); } catch (_) {}
  for (let i = 0; i < 40; i++) {
    try {
      const r = await fetch('/v1/api/iserver/auth/status', { credentials: 'include' });
      if (r.ok) {
        const t = await r.text();
        if (JSON.parse(t).authenticated === true) return t;
      }
    } catch (_) {}
    await sleep(1500);
  }
  return '';
})()
`

// BrowserLogin opens the gateway's SSO page in Chrome, waits until the
// session is authenticated, then copies the browser's cookies into the
// client and verifies them with Connect.
func (c *Client) BrowserLogin(ctx context.Context, opts LoginOptions) error {
	wait := opts.Wait
	if wait <= 0 {
		wait = loginWait()
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("allow-insecure-localhost", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("headless", opts.Headless),
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	actx, acancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer acancel()

	var ctxOpts []chromedp.ContextOption
	if opts.Quiet {
		nop := func(string, ...any) {}
		ctxOpts = append(ctxOpts, chromedp.WithLogf(nop), chromedp.WithDebugf(nop), chromedp.WithErrorf(nop))
	} else {
		ctxOpts = append(ctxOpts,
			chromedp.WithLogf(func(f string, a ...any) { c.logger.Debug(fmt.Sprintf(f, a...)) }),
			chromedp.WithErrorf(func(f string, a ...any) { c.logger.Warn(fmt.Sprintf(f, a...)) }),
		)
	}
	cctx, cancel := chromedp.NewContext(actx, ctxOpts...)
	defer cancel()
	cctx, tcancel := context.WithTimeout(cctx, wait)
	defer tcancel()

	if err := chromedp.Run(cctx, network.Enable(), chromedp.Navigate(loginURL(c.baseURL, opts.Paper))); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	c.logger.Info("waiting for gateway sign-in", slog.String("timeout", wait.String()))

	var status string
	for !strings.Contains(status, `"authenticated":true`) {
		if err := chromedp.Run(cctx, chromedp.Evaluate(authPollJS, &status, awaitPromise)); err != nil {
			return fmt.Errorf("sign-in not completed: %w", err)
		}
	}

	var cks []*network.Cookie
	if err := chromedp.Run(cctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cks, err = network.GetCookies().WithURLs([]string{c.baseURL}).Do(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}
	if len(cks) == 0 {
		return errors.New("browser returned no gateway cookies")
	}
	c.InjectCookies(httpCookies(cks))
	return c.Connect(ctx)
}

func awaitPromise(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func httpCookies(cks []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cks))
	for _, ck := range cks {
		hc := &http.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HttpOnly: ck.HTTPOnly,
		}
		if ck.Expires > 0 {
			hc.Expires = time.Unix(int64(ck.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}
