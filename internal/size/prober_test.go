package size

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func TestHTTPProberReadsDimensions(t *testing.T) {
	img := pngBytes(t, 236, 300)
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer server.Close()

	p := NewHTTPProber(WithHTTPClient(server.Client()), WithUserAgent("pinfeed-test"))
	got, err := p.Probe(context.Background(), server.URL+"/a.png")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if want := (LayoutSize{Width: 236, Height: 300}); got != want {
		t.Errorf("Probe = %v, want %v", got, want)
	}
	if gotUA != "pinfeed-test" {
		t.Errorf("expected custom user agent, got %q", gotUA)
	}
}

func TestHTTPProberStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := NewHTTPProber(WithHTTPClient(server.Client()))
	if _, err := p.Probe(context.Background(), server.URL+"/missing.png"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestHTTPProberNotAnImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>nope</html>"))
	}))
	defer server.Close()

	p := NewHTTPProber(WithHTTPClient(server.Client()))
	if _, err := p.Probe(context.Background(), server.URL); err == nil {
		t.Error("expected decode error for html body")
	}
}

func TestHTTPProberRejectsScheme(t *testing.T) {
	p := NewHTTPProber()
	_, err := p.Probe(context.Background(), "file:///etc/passwd")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestHTTPProberHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewHTTPProber(WithHTTPClient(server.Client()))
	if _, err := p.Probe(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
