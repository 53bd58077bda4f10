package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/cristianadrielbraun/qrlinks/internal/cache"
	"github.com/cristianadrielbraun/qrlinks/internal/config"
	"github.com/cristianadrielbraun/qrlinks/internal/handlers"
	"github.com/cristianadrielbraun/qrlinks/internal/logging"
	"github.com/cristianadrielbraun/qrlinks/internal/qrrender"
	"github.com/cristianadrielbraun/qrlinks/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Init(cfg.Logger)

	if err := run(cfg); err != nil {
		logging.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var rc *cache.RenderCache
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr, DB: cfg.Cache.DB})
		defer rdb.Close()
		rc = cache.New(rdb, cfg.Cache.TTL)
		if err := rc.Ping(ctx); err != nil {
			logging.Warn("Render cache unreachable, continuing", "addr", cfg.Cache.Addr, "error", err)
		}
	}

	enc, err := qrrender.NewEncoder(cfg.Render.Encoder)
	if err != nil {
		return err
	}
	style, err := cfg.Render.Style()
	if err != nil {
		return err
	}
	renderer := qrrender.NewRenderer(enc, qrrender.WithStyle(style), qrrender.WithWorkers(cfg.Render.Workers))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.RequestID(), handlers.AccessLog())
	r.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20

	h := handlers.New(st, renderer, rc, cfg)
	h.Register(r)

	ln, err := listen(cfg.Server.Addr, cfg.Server.PortAttempts)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	logging.Info("qrlinks listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// listen binds addr, moving to the next port while the current one is taken.
func listen(addr string, attempts int) (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("server.addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("server.addr %q: bad port", addr)
	}
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; ; i++ {
		a := net.JoinHostPort(host, strconv.Itoa(port+i))
		ln, err := net.Listen("tcp", a)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) || i+1 >= attempts || port == 0 {
			return nil, err
		}
		logging.Warn("Port in use, trying next", "addr", a)
	}
}
