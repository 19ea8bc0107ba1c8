package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	svg "github.com/ajstarks/svgo"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	inkBlack = color.RGBA{0, 0, 0, 255}
	inkWhite = color.RGBA{255, 255, 255, 255}
)

var (
	imageCacheMu sync.Mutex
	imageCache   = make(map[string]*image.RGBA)
	svgCache     = make(map[string]*image.RGBA)
)

//---------------- Fonts ----------------

// fontSet holds the faces used across all menus. Sizes are coordinated with
// the layout rectangles in config.go.
type fontSet struct {
	small  font.Face
	medium font.Face
	large  font.Face
	giant  font.Face
}

// loadFonts parses the display TTF at the given sizes. A missing or broken
// font file degrades to the builtin bitmap face so the daemon still runs on
// a bench machine without assets.
func loadFonts(path string) *fontSet {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("font %s not readable, using builtin face: %v", path, err)
		return builtinFonts()
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		log.Printf("font %s not parseable, using builtin face: %v", path, err)
		return builtinFonts()
	}

	face := func(size float64) font.Face {
		f, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			log.Printf("face %s@%v: %v", path, size, err)
			return basicfont.Face7x13
		}
		return f
	}

	return &fontSet{
		small:  face(12),
		medium: face(16),
		large:  face(24),
		giant:  face(64),
	}
}

func builtinFonts() *fontSet {
	return &fontSet{
		small:  basicfont.Face7x13,
		medium: basicfont.Face7x13,
		large:  basicfont.Face7x13,
		giant:  basicfont.Face7x13,
	}
}

//---------------- Text ----------------

// drawText draws a string at (x,y) where y is the top of the text box.
// Returns the x coordinate just past the drawn text.
func drawText(img *image.RGBA, text string, x, y int, face font.Face) int {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(inkBlack),
		Face: face,
	}
	metrics := face.Metrics()
	d.Dot = fixed.P(x, y+metrics.Ascent.Round())
	d.DrawString(text)
	return x + d.MeasureString(text).Round()
}

func drawTextCentered(img *image.RGBA, text string, y int, face font.Face) {
	d := &font.Drawer{Face: face}
	w := d.MeasureString(text).Round()
	x := (img.Bounds().Dx() - w) / 2
	drawText(img, text, x, y, face)
}

func measureText(text string, face font.Face) int {
	d := &font.Drawer{Face: face}
	return d.MeasureString(text).Round()
}

// truncateText shortens s to at most max characters, ellipsis included.
// Counted in runes: message text arrives over the network and may not be
// ASCII.
func truncateText(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

//---------------- Lines and bars ----------------

// drawHLine draws a 1px horizontal rule from x0 to x1 at the given y.
func drawHLine(img *image.RGBA, x0, x1, y int) {
	gc := draw2dimg.NewGraphicContext(img)
	gc.SetStrokeColor(inkBlack)
	gc.SetLineWidth(1)
	gc.BeginPath()
	gc.MoveTo(float64(x0), float64(y))
	gc.LineTo(float64(x1), float64(y))
	gc.Stroke()
}

// drawBar draws a progress bar: value-of-max filled, remainder outlined.
func drawBar(img *image.RGBA, x, y, w, h, value, max int) {
	gc := draw2dimg.NewGraphicContext(img)
	gc.SetStrokeColor(inkBlack)
	gc.SetLineWidth(1)
	gc.BeginPath()
	gc.MoveTo(float64(x), float64(y))
	gc.LineTo(float64(x+w), float64(y))
	gc.LineTo(float64(x+w), float64(y+h))
	gc.LineTo(float64(x), float64(y+h))
	gc.Close()
	gc.Stroke()

	if max <= 0 || value <= 0 {
		return
	}
	if value > max {
		value = max
	}
	fill := w * value / max
	gc.SetFillColor(inkBlack)
	gc.BeginPath()
	gc.MoveTo(float64(x), float64(y))
	gc.LineTo(float64(x+fill), float64(y))
	gc.LineTo(float64(x+fill), float64(y+h))
	gc.LineTo(float64(x), float64(y+h))
	gc.Close()
	gc.Fill()
}

//---------------- SVG ----------------

// rasterizeSVG renders SVG bytes to an RGBA image of the given size.
func rasterizeSVG(svgData []byte, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}
	if w == 0 {
		w = int(icon.ViewBox.W)
	}
	if h == 0 {
		h = int(icon.ViewBox.H)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return rgba, nil
}

// drawSVGFile rasterizes an SVG from disk at the target size and composites
// it onto the canvas. Rendered results are cached per path and size.
func drawSVGFile(img *image.RGBA, svgPath string, x0, y0, w, h int) error {
	cacheKey := fmt.Sprintf("%s_%d_%d", svgPath, w, h)

	imageCacheMu.Lock()
	cached, ok := svgCache[cacheKey]
	imageCacheMu.Unlock()
	if ok {
		compositeImage(img, cached, x0, y0)
		return nil
	}

	data, err := os.ReadFile(svgPath)
	if err != nil {
		return err
	}
	rendered, err := rasterizeSVG(data, w, h)
	if err != nil {
		return err
	}

	imageCacheMu.Lock()
	svgCache[cacheKey] = rendered
	imageCacheMu.Unlock()

	compositeImage(img, rendered, x0, y0)
	return nil
}

// drawHearts draws filled/empty heart glyphs for the health indicator. The
// SVG is generated once per (filled,total) pair and cached in /tmp so later
// renders come from the rendered-image cache.
func drawHearts(img *image.RGBA, x0, y0, filled, total int) {
	const heartSize = 10
	const gap = 2

	fn := filepath.Join(os.TempDir(), fmt.Sprintf("epc-hearts-%d-%d.svg", filled, total))
	if _, err := os.Stat(fn); err != nil {
		var buf bytes.Buffer
		canvas := svg.New(&buf)
		canvas.Start(total*(heartSize+gap), heartSize)
		for i := 0; i < total; i++ {
			x := i * (heartSize + gap)
			style := "fill:black"
			if i >= filled {
				style = "fill:none;stroke:black;stroke-width:1"
			}
			// Two lobes and a point approximate a pixel heart.
			canvas.Circle(x+3, 3, 3, style)
			canvas.Circle(x+7, 3, 3, style)
			canvas.Polygon(
				[]int{x, x + 5, x + 10},
				[]int{4, heartSize, 4},
				style)
		}
		canvas.End()
		if err := os.WriteFile(fn, buf.Bytes(), 0o644); err != nil {
			log.Printf("writing heart svg: %v", err)
			return
		}
	}

	if err := drawSVGFile(img, fn, x0, y0, (heartSize+gap)*total, heartSize); err != nil {
		log.Printf("drawing hearts: %v", err)
	}
}

//---------------- Sprites ----------------

// loadSprite reads a PNG sprite, converting to RGBA and caching by path.
func loadSprite(path string) (*image.RGBA, error) {
	imageCacheMu.Lock()
	cached, ok := imageCache[path]
	imageCacheMu.Unlock()
	if ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding sprite %s: %w", path, err)
	}

	b := decoded.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, decoded, b.Min, draw.Src)

	imageCacheMu.Lock()
	imageCache[path] = rgba
	imageCacheMu.Unlock()
	return rgba, nil
}

// drawSpriteScaled composites a sprite into dst at nearest-neighbour scale
// (pixel art stays crisp on the 1-bit panel).
func drawSpriteScaled(dst *image.RGBA, sprite *image.RGBA, target image.Rectangle) {
	sb := sprite.Bounds()
	tw, th := target.Dx(), target.Dy()
	if tw == 0 || th == 0 || sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}
	for y := 0; y < th; y++ {
		sy := sb.Min.Y + y*sb.Dy()/th
		for x := 0; x < tw; x++ {
			sx := sb.Min.X + x*sb.Dx()/tw
			c := sprite.RGBAAt(sx, sy)
			if c.A == 0 {
				continue
			}
			dst.SetRGBA(target.Min.X+x, target.Min.Y+y, c)
		}
	}
}

// compositeImage copies src onto dst at (x0,y0), skipping transparent
// pixels and alpha-mixing partial coverage.
func compositeImage(dst *image.RGBA, src *image.RGBA, x0, y0 int) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			sample := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
			if sample.A == 0 {
				continue
			}
			if sample.A == 255 {
				dst.SetRGBA(x0+x, y0+y, sample)
				continue
			}
			prev := dst.RGBAAt(x0+x, y0+y)
			a := uint16(sample.A)
			inv := uint16(255 - sample.A)
			dst.SetRGBA(x0+x, y0+y, color.RGBA{
				R: uint8((uint16(sample.R)*a + uint16(prev.R)*inv) / 255),
				G: uint8((uint16(sample.G)*a + uint16(prev.G)*inv) / 255),
				B: uint8((uint16(sample.B)*a + uint16(prev.B)*inv) / 255),
				A: 255,
			})
		}
	}
}

// drawASCIIPet is the fallback when sprite assets are missing.
func drawASCIIPet(img *image.RGBA, x, y int, face font.Face) {
	art := []string{
		`(\___/)`,
		`( o.o )`,
		` > ^ < `,
	}
	for i, line := range art {
		drawText(img, line, x, y+i*14, face)
	}
}

// spritePath resolves the frame file for a mood, e.g. sprites/happy/2.png.
func spritePath(dir, mood string, frame int) string {
	return filepath.Join(dir, strings.ToLower(mood), fmt.Sprintf("%d.png", frame))
}
