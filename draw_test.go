package main

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"golang.org/x/image/font/basicfont"
)

func TestDrawTextAdvancesX(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 50))
	face := basicfont.Face7x13

	endX := drawText(img, "Hello", 10, 10, face)
	if endX <= 10 {
		t.Error("drawing text should advance the X position")
	}

	if got := drawText(img, "", 20, 10, face); got != 20 {
		t.Errorf("empty text advanced X to %d, want 20", got)
	}

	if w := measureText("Hello", face); endX != 10+w {
		t.Errorf("end X %d disagrees with measured width %d", endX, w)
	}
}

func TestTruncateText(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 20, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this line is far too long", 10, "this li..."},
		{"abcdef", 3, "abc"},
		// Counted in runes, never split mid-character.
		{"día de los muertos", 10, "día de ..."},
		{"ñññ", 2, "ññ"},
	}
	for _, c := range cases {
		got := truncateText(c.in, c.max)
		if got != c.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateText(%q, %d) produced invalid UTF-8: %q", c.in, c.max, got)
		}
	}
}

func TestDrawSpriteScaled(t *testing.T) {
	sprite := image.NewRGBA(image.Rect(0, 0, 2, 2))
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	sprite.SetRGBA(0, 0, red)
	sprite.SetRGBA(1, 1, blue)
	// (1,0) and (0,1) stay transparent

	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	bg := color.RGBA{255, 255, 255, 255}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			dst.SetRGBA(x, y, bg)
		}
	}

	drawSpriteScaled(dst, sprite, image.Rect(2, 2, 6, 6))

	if got := dst.RGBAAt(2, 2); got != red {
		t.Errorf("top-left quadrant = %v, want red", got)
	}
	if got := dst.RGBAAt(5, 5); got != blue {
		t.Errorf("bottom-right quadrant = %v, want blue", got)
	}
	// Transparent source pixels leave the background alone.
	if got := dst.RGBAAt(5, 2); got != bg {
		t.Errorf("transparent quadrant = %v, want background", got)
	}
	// Nothing outside the target rectangle.
	if got := dst.RGBAAt(7, 7); got != bg {
		t.Errorf("outside target = %v, want background", got)
	}
}

func TestCompositeImageAlpha(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{0, 0, 0, 255}) // opaque black
	src.SetRGBA(1, 0, color.RGBA{0, 0, 0, 0})   // transparent

	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	white := color.RGBA{255, 255, 255, 255}
	dst.SetRGBA(1, 1, white)
	dst.SetRGBA(2, 1, white)

	compositeImage(dst, src, 1, 1)

	if got := dst.RGBAAt(1, 1); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("opaque pixel = %v, want black", got)
	}
	if got := dst.RGBAAt(2, 1); got != white {
		t.Errorf("transparent pixel overwrote destination: %v", got)
	}
}

func TestSpritePath(t *testing.T) {
	got := spritePath("assets/sprites", "Happy", 2)
	want := filepath.Join("assets", "sprites", "happy", "2.png")
	if got != want {
		t.Errorf("spritePath = %q, want %q", got, want)
	}
}

func TestLoadFontsFallsBack(t *testing.T) {
	fonts := loadFonts(filepath.Join(t.TempDir(), "missing.ttf"))
	if fonts == nil || fonts.small == nil || fonts.giant == nil {
		t.Fatal("missing font file must still yield usable faces")
	}
}
