package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/waveshare2in13v2"
)

// Panel is the hardware boundary. The coordinator renders into a landscape
// RGBA canvas; implementations take care of pushing it to the glass.
type Panel interface {
	Init() error
	Clear() error
	DrawFull(img image.Image) error
	DrawPartial(img image.Image, region image.Rectangle) error
	Sleep() error
}

//---------------- Waveshare e-paper panel ----------------

// epdPanel drives the Waveshare 2.13" panel over SPI. The controller is
// portrait (122x250) while the UI canvas is landscape (250x122), so every
// push rotates the canvas 90 degrees clockwise first.
type epdPanel struct {
	dev *waveshare2in13v2.Dev
}

func openEPD() (*epdPanel, error) {
	spiPort, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("opening SPI: %w", err)
	}

	busy := gpioreg.ByName(EPD_BUSY_PIN)
	if busy == nil {
		return nil, fmt.Errorf("busy pin %s not found", EPD_BUSY_PIN)
	}

	dev, err := waveshare2in13v2.New(spiPort,
		gpioreg.ByName(EPD_DC_PIN),
		gpioreg.ByName(EPD_CS_PIN),
		gpioreg.ByName(EPD_RST_PIN),
		busy,
		&waveshare2in13v2.EPD2in13v2)
	if err != nil {
		return nil, fmt.Errorf("opening e-paper device: %w", err)
	}

	log.Printf("e-paper panel ready: %s", dev)
	return &epdPanel{dev: dev}, nil
}

func (p *epdPanel) Init() error {
	if err := p.dev.Init(); err != nil {
		return fmt.Errorf("panel init: %w", err)
	}
	return p.Clear()
}

func (p *epdPanel) Clear() error {
	return p.dev.Clear(color.White)
}

func (p *epdPanel) DrawFull(img image.Image) error {
	if err := p.dev.SetUpdateMode(waveshare2in13v2.Full); err != nil {
		return err
	}
	rot := rotateCW(img)
	return p.dev.Draw(rot.Bounds(), rot, image.Point{})
}

func (p *epdPanel) DrawPartial(img image.Image, region image.Rectangle) error {
	if err := p.dev.SetUpdateMode(waveshare2in13v2.Partial); err != nil {
		return err
	}
	rot := rotateCW(img)
	rotRegion := rotateRectCW(region, img.Bounds().Dy())
	return p.dev.DrawPartial(rotRegion, rot, rotRegion.Min)
}

func (p *epdPanel) Sleep() error {
	return p.dev.Halt()
}

// rotateCW rotates an image 90 degrees clockwise. A landscape 250x122 canvas
// becomes the 122x250 portrait frame the controller expects.
func rotateCW(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// rotateRectCW maps a landscape region into the rotated portrait frame.
// srcHeight is the landscape canvas height.
func rotateRectCW(r image.Rectangle, srcHeight int) image.Rectangle {
	return image.Rect(srcHeight-r.Max.Y, r.Min.X, srcHeight-r.Min.Y, r.Max.X)
}

//---------------- Mock panel ----------------

// mockPanel stands in for the glass during development and tests. It keeps
// the last pushed frame and counts full/partial pushes; errors can be
// injected to exercise the recovery paths.
type mockPanel struct {
	mu sync.Mutex

	inited    bool
	fulls     int
	partials  int
	lastFrame *image.RGBA
	lastRect  image.Rectangle

	failNext int // fail this many upcoming pushes
	initErr  error
}

func newMockPanel() *mockPanel {
	return &mockPanel{}
}

func (m *mockPanel) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return m.initErr
	}
	m.inited = true
	return nil
}

func (m *mockPanel) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFrame = nil
	return nil
}

func (m *mockPanel) DrawFull(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("mock panel: injected write failure")
	}
	m.fulls++
	m.lastFrame = cloneRGBA(img)
	m.lastRect = img.Bounds()
	return nil
}

func (m *mockPanel) DrawPartial(img image.Image, region image.Rectangle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("mock panel: injected write failure")
	}
	m.partials++
	m.lastFrame = cloneRGBA(img)
	m.lastRect = region
	return nil
}

func (m *mockPanel) Sleep() error { return nil }

func (m *mockPanel) counts() (fulls, partials int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fulls, m.partials
}

func cloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
