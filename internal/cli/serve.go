package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/flagstack/flagstack/pkg/cache"
	"github.com/flagstack/flagstack/pkg/manifest"
	"github.com/flagstack/flagstack/pkg/observability"
	"github.com/flagstack/flagstack/pkg/render"
)

const (
	// defaultServeAddr is where the layer server listens.
	defaultServeAddr = ":8080"

	// shutdownTimeout bounds graceful shutdown on interrupt.
	shutdownTimeout = 5 * time.Second
)

// serveFlags holds the command-line flags for the serve command.
type serveFlags struct {
	addr string
}

// serveCommand creates the serve command, a static server for built stacks.
func (c *CLI) serveCommand() *cobra.Command {
	flags := serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve built layers and the manifest over HTTP",
		Long: `Serve a built output directory.

Routes:
  GET /manifest.json                 the stack index, never cached
  GET /layers/*                      layer and full-image PNGs
  GET /composite/{key}/{step}.png    layers 0..step flattened server-side
  GET /healthz                       liveness probe

The manifest is re-read on every request so a concurrent build is picked
up without restarting. Composites are cached across requests; a rebuild
changes the entry timestamp and so the cache key. The server shuts down
gracefully on interrupt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runServe(cmd.Context(), dir, &flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", defaultServeAddr, "listen address")

	return cmd
}

// runServe blocks until the context is cancelled or the listener fails.
func (c *CLI) runServe(ctx context.Context, dir string, flags *serveFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.OutDir()
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("output directory %s not found (run 'flagstack build' first)", dir)
	}

	store, err := c.newCache(ctx, cfg, false)
	if err != nil {
		c.Logger.Warn("cache unavailable, composites rendered per request", "err", err)
		store = cache.NewNullCache()
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              flags.addr,
		Handler:           c.router(dir, store, newKeyer(cfg)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	printSuccess("Serving %s", dir)
	printKeyValue("Address", "http://localhost"+flags.addr)
	printKeyValue("Manifest", "http://localhost"+flags.addr+"/manifest.json")
	printNewline()

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	c.Logger.Info("server stopped")
	return ctx.Err()
}

// router assembles the chi routes over the output directory.
func (c *CLI) router(dir string, store cache.Cache, keyer cache.Keyer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(c.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})

	r.Get("/manifest.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, req, filepath.Join(dir, manifestFile))
	})

	files := http.StripPrefix("/layers/", http.FileServer(http.Dir(dir)))
	r.Get("/layers/*", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, req)
	})

	r.Get("/composite/{key}/{step}.png", c.compositeHandler(dir, store, keyer))

	return r
}

// compositeHandler flattens layers 0..step of one stack into a single
// PNG, for clients that want reveal states without client-side
// compositing. Encoded composites cache under the entry's build
// timestamp, so a rebuild can never serve a stale image.
func (c *CLI) compositeHandler(dir string, store cache.Cache, keyer cache.Keyer) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "key")
		step, err := strconv.Atoi(chi.URLParam(req, "step"))
		if err != nil || step < 0 {
			http.NotFound(w, req)
			return
		}

		m, err := manifest.NewFileStore(filepath.Join(dir, manifestFile)).Load(req.Context())
		if err != nil {
			http.Error(w, "manifest unreadable", http.StatusInternalServerError)
			return
		}
		entry, ok := m.Entries[key]
		if !ok || step >= len(entry.Files) {
			http.NotFound(w, req)
			return
		}

		ckey := keyer.HTTPKey("composite", fmt.Sprintf("%s/%d/%d", key, step, entry.BuiltAt.UnixNano()))
		png, hit, err := store.Get(req.Context(), ckey)
		if err != nil || !hit {
			steps, err := loadRevealSteps(dir, entry)
			if err != nil {
				http.Error(w, "stack unreadable", http.StatusInternalServerError)
				return
			}
			if png, err = render.EncodePNG(steps[step]); err != nil {
				http.Error(w, "encode failed", http.StatusInternalServerError)
				return
			}
			if err := store.Set(req.Context(), ckey, png, cache.TTLHTTP); err != nil {
				c.Logger.Debug("composite cache write failed", "key", ckey, "err", err)
			}
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	}
}

// requestLogger logs each request and feeds the HTTP observability hooks.
func (c *CLI) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(req.Context(), req.Method, req.Host, req.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		duration := time.Since(start)
		observability.HTTP().OnResponse(req.Context(), req.Method, req.Host, req.URL.Path, ww.Status(), duration)
		c.Logger.Debug("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.Round(time.Microsecond),
		)
	})
}
