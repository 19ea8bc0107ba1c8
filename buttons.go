package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// ButtonEvent is a discrete, named press delivered to the main loop.
type ButtonEvent int

const (
	ReturnPress ButtonEvent = iota // feed pet / back to home
	ActionPress                    // switch menu
	ActionHold                     // long press on the menu button
	GoPress                        // menu-specific action
)

func (e ButtonEvent) String() string {
	switch e {
	case ReturnPress:
		return "return"
	case ActionPress:
		return "action"
	case ActionHold:
		return "action-hold"
	case GoPress:
		return "go"
	default:
		return fmt.Sprintf("button(%d)", int(e))
	}
}

//---------------- Single-slot handoff queue ----------------

// EventQueue is the capacity-1 handoff between interrupt callbacks and the
// polling loop. Offer never blocks: if the slot is occupied the new event
// is dropped, which coalesces rapid re-presses into one.
type EventQueue struct {
	ch chan ButtonEvent
}

func newEventQueue() *EventQueue {
	return &EventQueue{ch: make(chan ButtonEvent, 1)}
}

// Offer enqueues without blocking. Returns false if the event was dropped.
func (q *EventQueue) Offer(ev ButtonEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Get waits up to timeout for an event. timeout <= 0 polls without waiting.
func (q *EventQueue) Get(timeout time.Duration) (ButtonEvent, bool) {
	if timeout <= 0 {
		select {
		case ev := <-q.ch:
			return ev, true
		default:
			return 0, false
		}
	}
	select {
	case ev := <-q.ch:
		return ev, true
	case <-time.After(timeout):
		return 0, false
	}
}

// Has reports whether an event is waiting.
func (q *EventQueue) Has() bool {
	return len(q.ch) > 0
}

//---------------- GPIO source ----------------

// gpioButtons watches the three physical buttons and feeds the queue. Each
// pin gets its own edge-wait goroutine; the ACTION pin additionally
// discriminates press from hold by sampling until release.
type gpioButtons struct {
	queue *EventQueue

	debounce  time.Duration
	holdAfter time.Duration

	returnPin gpio.PinIO
	actionPin gpio.PinIO
	goPin     gpio.PinIO

	stop chan struct{}
}

// setupGPIOButtons configures the pins with pull-ups and falling-edge
// detection. Any missing pin is fatal: there is no degraded mode for
// absent hardware.
func setupGPIOButtons(queue *EventQueue, cfg Config) (*gpioButtons, error) {
	b := &gpioButtons{
		queue:     queue,
		debounce:  cfg.ButtonDebounce,
		holdAfter: cfg.LongPressThreshold,
		stop:      make(chan struct{}),
	}

	pins := []struct {
		name string
		dst  *gpio.PinIO
	}{
		{BUTTON_RETURN_PIN, &b.returnPin},
		{BUTTON_ACTION_PIN, &b.actionPin},
		{BUTTON_GO_PIN, &b.goPin},
	}
	for _, p := range pins {
		pin := gpioreg.ByName(p.name)
		if pin == nil {
			return nil, fmt.Errorf("button pin %s not found", p.name)
		}
		if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("configuring %s: %w", p.name, err)
		}
		*p.dst = pin
	}

	go b.watch(b.returnPin, ReturnPress, false)
	go b.watch(b.actionPin, ActionPress, true)
	go b.watch(b.goPin, GoPress, false)

	log.Printf("GPIO buttons ready: RETURN=%s ACTION=%s GO=%s",
		BUTTON_RETURN_PIN, BUTTON_ACTION_PIN, BUTTON_GO_PIN)
	return b, nil
}

func (b *gpioButtons) watch(pin gpio.PinIO, ev ButtonEvent, detectHold bool) {
	var lastPress time.Time
	for {
		select {
		case <-b.stop:
			return
		default:
		}

		if !pin.WaitForEdge(time.Second) {
			continue // periodic timeout so stop is honored
		}

		now := time.Now()
		if now.Sub(lastPress) < b.debounce {
			continue
		}
		lastPress = now

		out := ev
		if detectHold && b.heldPastThreshold(pin) {
			out = ActionHold
		}

		if !b.queue.Offer(out) {
			log.Printf("button %s dropped, queue full", out)
		}
	}
}

// heldPastThreshold samples the pin after a falling edge until it is
// released or the hold threshold passes. Low means pressed.
func (b *gpioButtons) heldPastThreshold(pin gpio.PinIO) bool {
	deadline := time.Now().Add(b.holdAfter)
	for time.Now().Before(deadline) {
		if pin.Read() == gpio.High {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
	return true
}

func (b *gpioButtons) Close() {
	close(b.stop)
	for _, pin := range []gpio.PinIO{b.returnPin, b.actionPin, b.goPin} {
		if pin != nil {
			if err := pin.Halt(); err != nil {
				log.Printf("halting %s: %v", pin, err)
			}
		}
	}
}

//---------------- evdev source ----------------

// evdevButtons maps a keyboard to the three buttons for bench runs without
// GPIO hardware: 1=RETURN, 2=ACTION (hold for ActionHold), 3=GO.
type evdevButtons struct {
	queue     *EventQueue
	holdAfter time.Duration
	dev       *evdev.InputDevice
}

func setupEvdevButtons(queue *EventQueue, cfg Config) (*evdevButtons, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing input devices: %w", err)
	}

	var devPath string
	for _, p := range paths {
		if strings.Contains(strings.ToLower(p.Name), "keyboard") {
			devPath = p.Path
			break
		}
	}
	if devPath == "" {
		return nil, fmt.Errorf("no keyboard input device found")
	}

	dev, err := evdev.Open(devPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", devPath, err)
	}
	name, _ := dev.Name()
	log.Printf("using input device: %s (%s)", devPath, name)

	b := &evdevButtons{
		queue:     queue,
		holdAfter: cfg.LongPressThreshold,
		dev:       dev,
	}
	go b.readLoop()
	return b, nil
}

func (b *evdevButtons) readLoop() {
	var actionDown time.Time
	for {
		ev, err := b.dev.ReadOne()
		if err != nil {
			log.Printf("evdev read error: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}

		switch ev.Code {
		case evdev.KEY_1:
			if ev.Value == 1 {
				b.queue.Offer(ReturnPress)
			}
		case evdev.KEY_2:
			// press/hold discriminated on release
			if ev.Value == 1 {
				actionDown = time.Now()
			} else if ev.Value == 0 && !actionDown.IsZero() {
				if time.Since(actionDown) >= b.holdAfter {
					b.queue.Offer(ActionHold)
				} else {
					b.queue.Offer(ActionPress)
				}
				actionDown = time.Time{}
			}
		case evdev.KEY_3:
			if ev.Value == 1 {
				b.queue.Offer(GoPress)
			}
		}
	}
}

func (b *evdevButtons) Close() {
	b.dev.Ungrab()
}
