package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"priceline/internal/chart"
	"priceline/internal/config"
	"priceline/internal/depth"
	"priceline/internal/feed"
	"priceline/internal/overlay"
	"priceline/internal/server"
	"priceline/internal/state"
)

// source is a feed the overlay can sample and the API can steer.
type source interface {
	overlay.Feed
	server.SymbolFeed
}

type options struct {
	configPath    string
	login         bool
	live          bool
	headless      bool
	mock          bool
	console       bool
	importBrowser string
	importBaseURL string
}

func parseArgs(args []string) options {
	o := options{configPath: "config.yaml"}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				o.configPath = args[i+1]
				i++
			}
		case "--cookies-from-browser":
			if i+2 < len(args) {
				o.importBrowser = args[i+1]
				o.importBaseURL = args[i+2]
				i += 2
			}
		case "--login":
			o.login = true
		case "--live":
			o.live = true
		case "--headless":
			o.headless = true
		case "--mock":
			o.mock = true
		case "--console":
			o.console = true
		}
	}
	return o
}

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	opts := parseArgs(os.Args[1:])
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", opts.configPath, err)
		os.Exit(1)
	}
	if opts.importBaseURL != "" {
		// an explicit URL wins over config.yaml's gateway_url
		cfg.GatewayURL = opts.importBaseURL
	}

	logger := config.NewLogger(cfg.LogLevel)
	logger.Info("priceline starting",
		slog.Int("port", cfg.Port),
		slog.String("symbol", cfg.Symbol),
		slog.Int("update_interval_ms", cfg.UpdateIntervalMS),
		slog.Bool("mock", opts.mock),
	)

	if err := run(cfg, opts, logger); err != nil {
		logger.Error("exit", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("bye")
}

func run(cfg config.Config, opts options, logger *slog.Logger) error {
	display, err := cfg.Overlay()
	if err != nil {
		return err
	}
	st := state.NewState(cfg.Symbol)
	bars := feed.NewBarClock(cfg.BarPeriod(), nil)

	var (
		src     source
		gateway *feed.GatewayFeed
		mock    *feed.MockFeed
	)
	if opts.mock {
		mock = feed.NewMockFeed(bars)
		src = mock
		if st.Symbol() == "" {
			st.SetSymbol("DEMO")
		}
	} else {
		client := feed.NewClient(cfg.GatewayURL, cfg.SessionStorePath, logger)
		if opts.importBrowser != "" {
			if cookies, err := feed.CookiesFromBrowser(opts.importBrowser, cfg.GatewayURL); err != nil {
				logger.Error("cookie import failed", slog.String("err", err.Error()))
			} else {
				client.InjectCookies(cookies)
				logger.Info("imported cookies from browser",
					slog.String("browser", opts.importBrowser),
					slog.Int("count", len(cookies)),
					slog.String("session_store", cfg.SessionStorePath),
				)
			}
		}
		if opts.login {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()
			err := client.BrowserLogin(ctx, feed.LoginOptions{
				Paper:    !opts.live,
				Headless: opts.headless,
				Quiet:    cfg.LogLevel != "debug",
			})
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			logger.Info("login successful (authenticated:true); session saved")
			return nil
		}
		gateway = feed.NewGatewayFeed(client, depth.NewAggregator(cfg.Levels), bars, logger)
		src = gateway
	}

	// publish is bound once the server exists; the host only repaints after Run starts.
	var srv *server.HTTPServer
	var printer *chart.TablePrinter
	if opts.console {
		printer = chart.NewTablePrinter(os.Stdout)
	}
	host := chart.NewHost(cfg.Viewport(time.Now()), cfg.Chart.MarginBars, func(f chart.Frame) {
		srv.BroadcastFrame(f)
		if printer != nil {
			printer.Print(f)
		}
	}, logger)

	ind := overlay.New(display, src, host,
		overlay.WithInterval(cfg.Interval()),
		overlay.WithLogger(logger),
	)
	host.SetFollow(func() (float64, time.Time, bool) {
		snap := ind.Snapshot()
		if !snap.HasLastPrice() {
			return 0, time.Time{}, false
		}
		return snap.LastPrice, src.LastBarTime(), true
	})
	srv = server.NewHTTPServer(cfg, st, ind, src, host, logger)
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return host.Run(ctx, ind) })

	if gateway != nil {
		g.Go(func() error {
			return gateway.Run(ctx, func(connected bool) {
				st.SetConnected(connected)
				srv.BroadcastStatus()
			})
		})
		g.Go(func() error {
			for err := range gateway.Errors() {
				logger.Error("feed error", slog.String("err", err.Error()))
				srv.BroadcastError(err.Error())
			}
			return nil
		})
	} else {
		st.SetConnected(true)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			return mock.RandomWalk(ctx, 100, 0.25, 150*time.Millisecond, rng)
		})
	}

	if sym := st.Symbol(); sym != "" {
		if err := src.SubscribeSymbol(sym); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
		ind.OnActivate()
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down...")
		ind.OnDeactivate()
		if gateway != nil {
			gateway.Close()
		}
		shCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shCtx)
	})

	return g.Wait()
}
