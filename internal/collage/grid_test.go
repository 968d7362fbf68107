package collage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender_GridWithPlaceholders(t *testing.T) {
	body := pngBytes(t, 60, 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	r := NewRenderer(400, 2)
	out, err := r.Render(context.Background(), []Tile{
		{ImageURL: srv.URL + "/a.png", Rank: 1},
		{ImageURL: srv.URL + "/missing.png", Rank: 2},
		{Rank: 3},
		{ImageURL: srv.URL + "/b.png", Rank: 4},
	})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 400), img.Bounds())
}

func TestRender_NoTiles(t *testing.T) {
	_, err := NewRenderer(0, 0).Render(context.Background(), nil)
	assert.Error(t, err)
}

func TestCompose_PartialRow(t *testing.T) {
	out, err := NewRenderer(400, 2).Compose([]Tile{{Rank: 1}}, nil)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestFit(t *testing.T) {
	dst := image.Rect(0, 0, 100, 100)
	assert.Equal(t, image.Rect(0, 25, 100, 75), fit(dst, image.Rect(0, 0, 200, 100)))
	assert.Equal(t, image.Rect(25, 0, 75, 100), fit(dst, image.Rect(0, 0, 50, 100)))
	assert.Equal(t, dst, fit(dst, image.Rectangle{}))
}
