package collage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// maxImageSize is the maximum accepted product image size (8MB)
const maxImageSize = 8 * 1024 * 1024

var (
	background  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	placeholder = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	badgeText   = color.RGBA{R: 0, G: 0, B: 0, A: 255}

	// gold, silver, bronze, then plain blue
	badgeColors = []color.RGBA{
		{R: 255, G: 215, B: 0, A: 255},
		{R: 192, G: 192, B: 192, A: 255},
		{R: 205, G: 127, B: 50, A: 255},
		{R: 100, G: 160, B: 230, A: 255},
	}
)

// Tile is one cell of the grid.
type Tile struct {
	ImageURL string
	Rank     int
}

// Renderer composes product images into a square JPEG grid.
type Renderer struct {
	httpClient *http.Client
	size       int
	columns    int
	quality    int
}

// NewRenderer creates a renderer producing size x size images with the given
// number of columns.
func NewRenderer(size, columns int) *Renderer {
	if size <= 0 {
		size = 800
	}
	if columns <= 0 {
		columns = 2
	}
	return &Renderer{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		size:       size,
		columns:    columns,
		quality:    85,
	}
}

// Render downloads every tile image concurrently and draws the grid. Tiles
// whose image cannot be loaded get a grey placeholder.
func (r *Renderer) Render(ctx context.Context, tiles []Tile) ([]byte, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles to render")
	}

	images := make([]image.Image, len(tiles))
	var wg sync.WaitGroup
	for i, tile := range tiles {
		if tile.ImageURL == "" {
			continue
		}
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			img, err := r.fetch(ctx, url)
			if err != nil {
				log.Debug().Err(err).Str("url", url).Msg("Collage image unavailable, using placeholder")
				return
			}
			images[i] = img
		}(i, tile.ImageURL)
	}
	wg.Wait()

	return r.Compose(tiles, images)
}

// Compose draws already decoded images; images[i] may be nil.
func (r *Renderer) Compose(tiles []Tile, images []image.Image) ([]byte, error) {
	rows := (len(tiles) + r.columns - 1) / r.columns
	cell := r.size / r.columns
	canvas := image.NewRGBA(image.Rect(0, 0, r.size, max(rows, 1)*cell))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	for i, tile := range tiles {
		x := (i % r.columns) * cell
		y := (i / r.columns) * cell
		rect := image.Rect(x, y, x+cell, y+cell).Inset(4)

		var img image.Image
		if i < len(images) {
			img = images[i]
		}
		if img == nil {
			draw.Draw(canvas, rect, image.NewUniform(placeholder), image.Point{}, draw.Src)
		} else {
			draw.ApproxBiLinear.Scale(canvas, fit(rect, img.Bounds()), img, img.Bounds(), draw.Over, nil)
		}
		if tile.Rank > 0 {
			drawBadge(canvas, rect.Min, tile.Rank)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("encode collage: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// fit returns the largest rectangle with src's aspect ratio centred in dst.
func fit(dst, src image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := dst.Dx(), dst.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}
	w, h := dw, sh*dw/sw
	if h > dh {
		w, h = sw*dh/sh, dh
	}
	x := dst.Min.X + (dw-w)/2
	y := dst.Min.Y + (dh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func drawBadge(dst draw.Image, at image.Point, rank int) {
	const side = 36
	c := badgeColors[len(badgeColors)-1]
	if rank-1 < len(badgeColors) {
		c = badgeColors[rank-1]
	}
	badge := image.Rect(at.X+6, at.Y+6, at.X+6+side, at.Y+6+side)
	draw.Draw(dst, badge, image.NewUniform(c), image.Point{}, draw.Src)

	label := strconv.Itoa(rank)
	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(badgeText),
		Face: face,
		Dot:  fixed.P(badge.Min.X+(side-width)/2, badge.Min.Y+side/2+5),
	}
	d.DrawString(label)
}
