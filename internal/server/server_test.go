package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/internal/screensaver"
	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

type fakeDisplay struct {
	mu          sync.Mutex
	images      []image.Image
	screensaver int
	err         error
}

func (f *fakeDisplay) ShowImage(_ context.Context, img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.images = append(f.images, img)
	return nil
}

func (f *fakeDisplay) ShowScreensaver(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.screensaver++
	return nil
}

func (f *fakeDisplay) shown() ([]image.Image, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images, f.screensaver
}

func (f *fakeDisplay) Status() types.DisplayStatus {
	return types.DisplayStatus{Mode: types.ModeScreensaver, Generation: 12, Width: 4, Height: 2}
}

func newTestServer(t *testing.T, display Display, opts ...Option) *httptest.Server {
	t.Helper()
	cfg := types.ServerConfig{Addr: "127.0.0.1:0", MaxUploadBytes: 1024}
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	srv := httptest.NewServer(New(cfg, 4, 2, display, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, contentType string, body []byte) (int, string) {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(msg))
}

func TestImageUpload(t *testing.T) {
	display := &fakeDisplay{}
	srv := newTestServer(t, display)

	body := bytes.Repeat([]byte{1, 2, 3}, 4*2)
	code, msg := post(t, srv.URL+"/image", "application/octet-stream", body)
	if code != http.StatusOK || msg != "Successfully uploaded image" {
		t.Fatalf("POST /image = %d %q", code, msg)
	}
	images, _ := display.shown()
	if len(images) != 1 {
		t.Fatalf("display got %d images, want 1", len(images))
	}
	r, g, b, _ := images[0].At(3, 1).RGBA()
	if r>>8 != 1 || g>>8 != 2 || b>>8 != 3 {
		t.Errorf("pixel (3, 1) = %d %d %d, want 1 2 3", r>>8, g>>8, b>>8)
	}
}

func TestImageUploadPNG(t *testing.T) {
	display := &fakeDisplay{}
	srv := newTestServer(t, display)

	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, src)

	code, msg := post(t, srv.URL+"/image", "image/png", buf.Bytes())
	if code != http.StatusOK {
		t.Fatalf("POST /image = %d %q", code, msg)
	}
	images, _ := display.shown()
	if got := images[0].Bounds(); got != image.Rect(0, 0, 4, 2) {
		t.Errorf("image bounds = %v, want the panel size", got)
	}
}

func TestImageUploadErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantCode    int
		wantMsg     string
	}{
		{"short raw", "application/octet-stream", make([]byte, 23), http.StatusBadRequest, "Invalid image size"},
		{"long raw", "", make([]byte, 25), http.StatusBadRequest, "Invalid image size"},
		{"unsupported", "text/plain", []byte("hi"), http.StatusUnsupportedMediaType, "Unsupported content type"},
		{"corrupt png", "image/png", []byte("nope"), http.StatusBadRequest, "Invalid image"},
		{"too large", "application/octet-stream", make([]byte, 2048), http.StatusRequestEntityTooLarge, "Image too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display := &fakeDisplay{}
			srv := newTestServer(t, display)

			code, msg := post(t, srv.URL+"/image", tt.contentType, tt.body)
			if code != tt.wantCode || msg != tt.wantMsg {
				t.Errorf("POST /image = %d %q, want %d %q", code, msg, tt.wantCode, tt.wantMsg)
			}
			if images, _ := display.shown(); len(images) != 0 {
				t.Error("display got an image from a rejected upload")
			}
		})
	}
}

func TestImageUploadDisplayError(t *testing.T) {
	srv := newTestServer(t, &fakeDisplay{err: errors.New("panel unplugged")})

	code, _ := post(t, srv.URL+"/image", "", make([]byte, 24))
	if code != http.StatusInternalServerError {
		t.Errorf("POST /image = %d, want 500", code)
	}
}

func TestScreensaver(t *testing.T) {
	display := &fakeDisplay{}
	srv := newTestServer(t, display)

	code, msg := post(t, srv.URL+"/screensaver", "", nil)
	if code != http.StatusOK || msg != "Screensaver started" {
		t.Fatalf("POST /screensaver = %d %q", code, msg)
	}
	if _, n := display.shown(); n != 1 {
		t.Errorf("screensaver started %d times, want 1", n)
	}

	srv = newTestServer(t, &fakeDisplay{err: fmt.Errorf("wrapped: %w", screensaver.ErrSinkUnavailable)})
	if code, _ := post(t, srv.URL+"/screensaver", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("POST /screensaver without a matrix = %d, want 503", code)
	}
}

func TestStatusAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeDisplay{})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()
	var status types.DisplayStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Mode != types.ModeScreensaver || status.Generation != 12 {
		t.Errorf("status = %+v", status)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("GET /health = %q, want OK", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeDisplay{})

	resp, err := http.Get(srv.URL + "/image")
	if err != nil {
		t.Fatalf("GET /image error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /image = %d, want 405", resp.StatusCode)
	}
}

func TestPreviewRoute(t *testing.T) {
	preview := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("preview"))
	})
	srv := newTestServer(t, &fakeDisplay{}, WithPreview(preview))

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("GET /ws error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "preview" {
		t.Errorf("GET /ws = %q", body)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	s := New(types.ServerConfig{Addr: addr, MaxUploadBytes: 1024}, 4, 2, &fakeDisplay{}, WithLogger(logging.Discard()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("ListenAndServe() did not return after cancel")
	}
}
