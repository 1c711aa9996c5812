package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rmmh/blockmesh/go/pipeline"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stonePack(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var tex bytes.Buffer
	require.NoError(t, png.Encode(&tex, img))

	dir := t.TempDir()
	for p, data := range map[string][]byte{
		rp.BlockStatePath("stone"): []byte(`{"variants":{"":{"model":"block/stone"}}}`),
		rp.ModelPath("block/stone"): []byte(`{"textures":{"all":"block/stone"},"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{
			"down":{"texture":"#all"},"up":{"texture":"#all"},"north":{"texture":"#all"},
			"south":{"texture":"#all"},"west":{"texture":"#all"},"east":{"texture":"#all"}}}]}`),
		rp.TexturePath("block/stone"): tex.Bytes(),
	} {
		dest := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
		require.NoError(t, os.WriteFile(dest, data, 0o644))
	}
	return dir
}

// writeStoneSchematic writes a one-block sponge schematic.
func writeStoneSchematic(t *testing.T, path string) {
	t.Helper()
	root := map[string]any{
		"Version":     int32(2),
		"DataVersion": int32(3700),
		"Width":       int16(1),
		"Height":      int16(1),
		"Length":      int16(1),
		"Palette":     map[string]any{"minecraft:stone": int32(0)},
		"BlockData":   [1]byte{0},
	}
	raw, err := nbt.MarshalEncoding(root, nbt.BigEndian)
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func testServer(t *testing.T) (*httptest.Server, *pipeline.Config) {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.Packs = []string{stonePack(t)}
	cfg.Workers = 2
	cfg.Serve.SchematicDir = t.TempDir()
	cfg.Serve.DataDir = t.TempDir()
	writeStoneSchematic(t, filepath.Join(cfg.Serve.SchematicDir, "house.schem"))

	stack, err := pipeline.OpenStack(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Close() })

	s := newServer(cfg, stack)
	s.start(context.Background(), cfg.Workers)
	ts := httptest.NewServer(s.router())
	t.Cleanup(ts.Close)
	return ts, cfg
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServeBundle(t *testing.T) {
	ts, cfg := testServer(t)
	out := filepath.Join(cfg.Serve.DataDir, "bundle", "house.zip")

	resp, body := get(t, ts.URL+"/bundle/house.schem")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte("PK"), body[:2])
	first, err := os.Stat(out)
	require.NoError(t, err)

	// fresh output is served as is
	resp, _ = get(t, ts.URL+"/bundle/house.schem")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), again.ModTime())

	// a newer schematic makes it stale
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(cfg.Serve.SchematicDir, "house.schem"), future, future))
	resp, _ = get(t, ts.URL+"/bundle/house.schem")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rebuilt, err := os.Stat(out)
	require.NoError(t, err)
	assert.NotEqual(t, first.ModTime(), rebuilt.ModTime())
}

func TestServeJSON(t *testing.T) {
	ts, _ := testServer(t)
	resp, body := get(t, ts.URL+"/json/house.schem")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"name":"minecraft:stone"`)
}

func TestServeErrors(t *testing.T) {
	ts, cfg := testServer(t)

	resp, _ := get(t, ts.URL+"/bundle/missing.schem")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/bundle/house.txt")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Serve.SchematicDir, "broken.litematic"), []byte("junk"), 0o644))
	resp, _ = get(t, ts.URL+"/bundle/broken.litematic")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NoFileExists(t, filepath.Join(cfg.Serve.DataDir, "bundle", "broken.zip"))
}

func TestServeConcurrentRequests(t *testing.T) {
	ts, _ := testServer(t)
	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/bundle/house.schem")
			if err != nil {
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}
