package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshelf/gameshelf/pkg/gameinfo"
	"github.com/gameshelf/gameshelf/pkg/library"
)

// pngBytes returns a tiny valid PNG for feeding through the real decoder.
func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testBundle struct {
	entries map[string][]byte
}

func (b *testBundle) ReadSubFile(name string) ([]byte, error) {
	data, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", name, os.ErrNotExist)
	}
	return data, nil
}

func (b *testBundle) Close() error { return nil }

type testOpener struct {
	icon []byte
}

func (o *testOpener) OpenBundle(path string) (gameinfo.Bundle, error) {
	return &testBundle{entries: map[string][]byte{
		"PARAM.SFO": []byte("TITLE=Test Game"),
		"ICON0.PNG": o.icon,
	}}, nil
}

func (o *testOpener) OpenVolume(path string) (gameinfo.Volume, error) {
	return nil, os.ErrNotExist
}

type testCodec struct{}

func (testCodec) Parse(data []byte) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			attrs[k] = v
		}
	}
	return attrs, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *gameinfo.Cache, *library.Library) {
	t.Helper()

	cache := gameinfo.New(gameinfo.Options{
		Workers: 1,
		Opener:  &testOpener{icon: pngBytes(t)},
		Codec:   testCodec{},
	})
	cache.Init()
	t.Cleanup(cache.Shutdown)

	lib := library.New(nil, cache)

	srv := httptest.NewServer(NewRouter(cache, lib))
	t.Cleanup(srv.Close)
	return srv, cache, lib
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()

	defer resp.Body.Close()
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResponse(t, resp)
	assert.Equal(t, "healthy", out.Status)
}

func TestRootRedirectsToHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/health", resp.Header.Get("Location"))
}

func TestListGames(t *testing.T) {
	srv, _, lib := newTestServer(t)

	lib.Add("/games/EBOOT.PBP")
	lib.Add("/games/disc.iso")

	// Titles fill in asynchronously as loader tasks complete.
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/v1/games")
		if err != nil {
			return false
		}
		out := decodeResponse(t, resp)

		raw, err := json.Marshal(out.Data)
		require.NoError(t, err)
		var games []gameView
		require.NoError(t, json.Unmarshal(raw, &games))

		return len(games) == 2 && games[0].Title == "Test Game"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGameInfo(t *testing.T) {
	srv, _, _ := newTestServer(t)

	t.Run("missing path", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/info")
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		out := decodeResponse(t, resp)
		assert.Equal(t, "error", out.Status)
	})

	t.Run("invalid bg", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/info?path=/games/EBOOT.PBP&bg=maybe")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("returns record state", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/info?path=/games/EBOOT.PBP")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		out := decodeResponse(t, resp)
		require.Equal(t, "ok", out.Status)

		raw, err := json.Marshal(out.Data)
		require.NoError(t, err)
		var rec recordView
		require.NoError(t, json.Unmarshal(raw, &rec))

		assert.Equal(t, "/games/EBOOT.PBP", rec.Path)
		assert.Equal(t, "bundle", rec.Kind)
		assert.False(t, rec.WantBackground)
		assert.Len(t, rec.Slots, 3)
	})
}

func TestArtwork(t *testing.T) {
	srv, _, _ := newTestServer(t)

	t.Run("invalid slot", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/artwork?path=/games/EBOOT.PBP&slot=banner")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("pending while undecoded", func(t *testing.T) {
		// Executables never produce artwork, so the slot stays empty.
		resp, err := http.Get(srv.URL + "/api/v1/games/artwork?path=/games/homebrew.elf")
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		out := decodeResponse(t, resp)
		assert.Equal(t, "pending", out.Status)
	})

	t.Run("serves decoded icon as png", func(t *testing.T) {
		var body []byte
		require.Eventually(t, func() bool {
			resp, err := http.Get(srv.URL + "/api/v1/games/artwork?path=/games/EBOOT.PBP&slot=icon")
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return false
			}
			assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

			var buf bytes.Buffer
			_, err = buf.ReadFrom(resp.Body)
			require.NoError(t, err)
			body = buf.Bytes()
			return true
		}, 2*time.Second, 20*time.Millisecond)

		img, err := png.Decode(bytes.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	})
}

func TestCacheEndpoints(t *testing.T) {
	srv, cache, lib := newTestServer(t)

	lib.Add("/games/EBOOT.PBP")
	require.Equal(t, 1, cache.Len())

	t.Run("stats", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/cache")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		out := decodeResponse(t, resp)
		raw, err := json.Marshal(out.Data)
		require.NoError(t, err)
		var stats map[string]int
		require.NoError(t, json.Unmarshal(raw, &stats))

		assert.Equal(t, 1, stats["records"])
		assert.Equal(t, 1, stats["games"])
	})

	t.Run("flush backgrounds", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/cache/flush-backgrounds", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("clear", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/cache/clear", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, cache.Len())
	})
}
