// Package server exposes the display over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fkcurrie/ledpanel-golang/internal/imaging"
	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/internal/screensaver"
	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

const shutdownTimeout = 5 * time.Second

// Display is what the handlers drive
type Display interface {
	ShowImage(ctx context.Context, img image.Image) error
	ShowScreensaver(ctx context.Context) error
	Status() types.DisplayStatus
}

// Option configures a Server
type Option func(*Server)

// WithPreview serves h at /ws
func WithPreview(h http.Handler) Option {
	return func(s *Server) {
		s.preview = h
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Server handles image uploads and screensaver requests
type Server struct {
	cfg     types.ServerConfig
	width   int
	height  int
	display Display
	preview http.Handler
	log     *slog.Logger
}

// New creates a server for a width x height display
func New(cfg types.ServerConfig, width, height int, display Display, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		width:   width,
		height:  height,
		display: display,
		log:     logging.New("http server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /image", s.handleImage)
	mux.HandleFunc("POST /screensaver", s.handleScreensaver)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.preview != nil {
		mux.Handle("GET /ws", s.preview)
	}
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.log.Error("image upload too large", "limit", tooLarge.Limit)
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.log.Error("failed to receive data", "err", err)
		http.Error(w, "Failed to receive data", http.StatusInternalServerError)
		return
	}

	contentType := r.Header.Get("Content-Type")
	img, err := imaging.Decode(contentType, body, s.width, s.height)
	switch {
	case errors.Is(err, imaging.ErrInvalidSize):
		s.log.Error("request content length does not match image size",
			"expected", s.width*s.height*3, "received", len(body))
		http.Error(w, "Invalid image size", http.StatusBadRequest)
		return
	case errors.Is(err, imaging.ErrUnsupportedType):
		s.log.Error("unsupported image type", "content_type", contentType)
		http.Error(w, "Unsupported content type", http.StatusUnsupportedMediaType)
		return
	case err != nil:
		s.log.Error("failed to decode image", "err", err)
		http.Error(w, "Invalid image", http.StatusBadRequest)
		return
	}
	s.log.Info("received image data", "bytes", len(body), "content_type", contentType)

	if err := s.display.ShowImage(r.Context(), img); err != nil {
		s.log.Error("failed to show image", "err", err)
		http.Error(w, "Failed to show image", http.StatusInternalServerError)
		return
	}
	w.Write([]byte("Successfully uploaded image"))
}

func (s *Server) handleScreensaver(w http.ResponseWriter, r *http.Request) {
	s.log.Info("received screensaver intent")

	if err := s.display.ShowScreensaver(r.Context()); err != nil {
		s.log.Error("failed to start screensaver", "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, screensaver.ErrSinkUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "Failed to start screensaver", status)
		return
	}
	w.Write([]byte("Screensaver started"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.display.Status()); err != nil {
		s.log.Error("failed to encode status", "err", err)
	}
}
