package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

type Server interface {
	// ServeWithReadyCallback calls onReady once the listener is bound.
	ServeWithReadyCallback(onReady func()) error
	Addr() string
	Shutdown(ctx context.Context) error
}

type server struct {
	httpSrv *http.Server
	ln      net.Listener
	log     *zap.Logger
}

func newServer(log *zap.Logger, conf Config, handler http.Handler) *server {
	return &server{
		httpSrv: &http.Server{
			Addr:              ":" + strconv.Itoa(conf.Port),
			Handler:           handler,
			ReadHeaderTimeout: conf.Connection.ReadHeaderTimeout,
			ReadTimeout:       conf.Connection.ReadTimeout,
			WriteTimeout:      conf.Connection.WriteTimeout,
			IdleTimeout:       conf.Connection.IdleTimeout,
			MaxHeaderBytes:    conf.Connection.MaxHeaderBytes,
		},
		log: log,
	}
}

func (s *server) ServeWithReadyCallback(onReady func()) error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		s.log.Error("failed to listen", zap.String("addr", s.httpSrv.Addr), zap.Error(err))
		return err
	}
	s.ln = ln
	s.log.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if onReady != nil {
		onReady()
	}

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) Addr() string {
	if s.ln == nil {
		return s.httpSrv.Addr
	}
	return s.ln.Addr().String()
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
