package enhance

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend doubles whatever PNG it receives, like the real model does.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/warmup":
			w.WriteHeader(200)
		case "/restore":
			in, err := png.Decode(r.Body)
			require.NoError(t, err)
			b := in.Bounds()
			out := image.NewRGBA(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
			w.Header().Set("Content-Type", "image/png")
			require.NoError(t, png.Encode(w, out))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClient_Enhance(t *testing.T) {
	backend := fakeBackend(t)
	defer backend.Close()

	c := NewClient(backend.URL, "v1.4", 10*time.Second, zap.NewNop())

	out, err := c.Enhance(context.Background(), image.NewRGBA(image.Rect(0, 0, 320, 240)), "v1.3")
	require.NoError(t, err)
	assert.Equal(t, 640, out.Bounds().Dx())
	assert.Equal(t, 480, out.Bounds().Dy())
}

func TestClient_UnknownVersionFallsBack(t *testing.T) {
	var gotVersion string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.URL.Query().Get("version")
		var buf bytes.Buffer
		png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)))
		w.Write(buf.Bytes())
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "v1.4", 10*time.Second, zap.NewNop())

	_, err := c.Enhance(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)), "v9.9")
	require.NoError(t, err)
	assert.Equal(t, "v1.4", gotVersion)
}

func TestClient_BackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", 503)
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "v1.4", 10*time.Second, zap.NewNop())

	_, err := c.Enhance(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), "v1.4")
	assert.ErrorIs(t, err, ErrBackend)
}

func TestClient_BackendUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "v1.4", time.Second, zap.NewNop())

	_, err := c.Enhance(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), "v1.4")
	assert.ErrorIs(t, err, ErrBackend)
}

func TestClient_GarbageResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a png"))
	}))
	defer backend.Close()

	c := NewClient(backend.URL, "v1.4", 10*time.Second, zap.NewNop())

	_, err := c.Enhance(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), "v1.4")
	assert.ErrorIs(t, err, ErrBackend)
}
