// Package server hosts the simulation authority: the hub of worlds behind an
// HTTP and websocket front end. It runs both as a dedicated server and inside
// the client for singleplayer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/voxel-client/internal/httpapi"
	"github.com/DoyleJ11/voxel-client/internal/hub"
	"github.com/DoyleJ11/voxel-client/internal/journal"
)

const shutdownTimeout = 3 * time.Second

type Options struct {
	Addr      string
	WorldCode string
	TickHz    int
	Wanderers int
	// Journal is closed with the server when it has a Close method.
	Journal journal.Journal
	// Chat serves stored history; nil disables the endpoint.
	Chat   httpapi.ChatLog
	Logger *zap.Logger
}

type Server struct {
	opts  Options
	log   *zap.Logger
	hub   *hub.Hub
	http  *http.Server
	ln    net.Listener
	serve chan error

	closeOnce sync.Once
	closeErr  error
}

// Start listens on opts.Addr and serves in the background until Close. The
// default world is created up front.
func Start(ctx context.Context, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WorldCode == "" {
		opts.WorldCode = "main"
	}
	log := opts.Logger.Named("server")

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", opts.Addr, err)
	}

	h := hub.NewHub(context.WithoutCancel(ctx), hub.Options{
		TickHz:    opts.TickHz,
		Wanderers: opts.Wanderers,
		Journal:   opts.Journal,
		Logger:    opts.Logger,
	})
	if h.Ensure(opts.WorldCode) == nil {
		_ = ln.Close()
		return nil, errors.New("hub stopped before the default world was created")
	}

	s := &Server{
		opts: opts,
		log:  log,
		hub:  h,
		http: &http.Server{
			Handler:           httpapi.SetupRoutes(h, opts.Chat, opts.Logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:    ln,
		serve: make(chan error, 1),
	}
	go func() {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serve <- err
	}()

	log.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("world", opts.WorldCode))
	return s, nil
}

// StartLocal runs an authority on a loopback port for singleplayer.
func StartLocal(ctx context.Context, opts Options) (*Server, error) {
	opts.Addr = "127.0.0.1:0"
	return Start(ctx, opts)
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// URL is the websocket endpoint of the default world.
func (s *Server) URL() string {
	u := url.URL{
		Scheme:   "ws",
		Host:     s.ln.Addr().String(),
		Path:     "/ws",
		RawQuery: url.Values{"world": {s.opts.WorldCode}}.Encode(),
	}
	return u.String()
}

// Wait blocks until the listener stops and returns its error, if any.
func (s *Server) Wait() error {
	err := <-s.serve
	s.serve <- err
	return err
}

// Close tells every client the server is going away, then stops serving.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.hub.Shutdown("server stopping")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.http.Shutdown(ctx)
		if c, ok := s.opts.Journal.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
		s.closeErr = err
		s.log.Info("stopped")
	})
	return s.closeErr
}

// Run serves until ctx is done or the listener fails.
func Run(ctx context.Context, opts Options) error {
	s, err := Start(ctx, opts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Wait)
	g.Go(func() error {
		<-gctx.Done()
		return s.Close()
	})
	return g.Wait()
}
