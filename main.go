package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/host/v3"
)

//---------------- Main ----------------

func main() {
	envPath := flag.String("env", "", "path to .env file (default: ./.env)")
	mock := flag.Bool("mock", false, "run against a mock panel, no GPIO/SPI")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	cfg, err := loadConfig(*envPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *mock {
		cfg.MockHardware = true
	}
	if *debug {
		cfg.DebugMode = true
	}
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix(cfg.DeviceName + " ")

	loc, err := time.LoadLocation(cfg.DeviceTimezone)
	if err != nil {
		log.Printf("timezone %q not found, using local: %v", cfg.DeviceTimezone, err)
		loc = time.Local
	}

	// Hardware.
	var panel Panel
	if cfg.MockHardware {
		panel = newMockPanel()
		log.Println("running with mock panel")
	} else {
		if _, err := host.Init(); err != nil {
			log.Fatalf("host init: %v", err)
		}
		epd, err := openEPD()
		if err != nil {
			log.Fatalf("e-paper: %v", err)
		}
		panel = epd
	}
	if err := panel.Init(); err != nil {
		log.Fatalf("panel init: %v", err)
	}

	fonts := loadFonts(cfg.fontPath("DejaVuSansMono.ttf"))

	// Stores.
	pet := newPetState(cfg)
	messages := newMessageLog(cfg)
	settings := newSettings(cfg)
	stats := newStats(cfg)
	peer := newPeerClient(cfg)

	coordinator := newRefreshCoordinator(panel,
		settings.CycleLimit(cfg.FullRefreshCycles), cfg.FullRefreshTime)

	ctx := &menuContext{
		cfg:         cfg,
		coordinator: coordinator,
		fonts:       fonts,
		loc:         loc,
		pet:         pet,
		messages:    messages,
		settings:    settings,
		stats:       stats,
		peer:        peer,
	}

	anim := newAnimationState(pet.Mood())
	home := newHomeMenu(ctx, anim)
	menus := []Menu{
		home,
		newMessagesMenu(ctx),
		newStatsMenu(ctx),
		newSettingsMenu(ctx),
	}
	sm := newMenuStateMachine(menus, coordinator, stats, cfg.ButtonThrottle)
	scheduler := newAnimationScheduler(anim, pet, settings, sm, home, cfg.AnimationInterval)

	// Input: GPIO buttons on hardware, keyboard fallback otherwise.
	queue := newEventQueue()
	var closeButtons func()
	if !cfg.MockHardware {
		gb, err := setupGPIOButtons(queue, cfg)
		if err != nil {
			log.Fatalf("buttons: %v", err)
		}
		closeButtons = gb.Close
	} else if eb, err := setupEvdevButtons(queue, cfg); err == nil {
		closeButtons = eb.Close
	} else {
		log.Printf("no input source: %v", err)
	}

	api := newAPIServer(cfg, coordinator, pet, messages, settings, stats)
	go api.run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	clockTick := time.NewTicker(cfg.ClockUpdateInterval)
	petTick := time.NewTicker(cfg.PetUpdateInterval)
	probeTick := time.NewTicker(30 * time.Second)
	defer clockTick.Stop()
	defer petTick.Stop()
	defer probeTick.Stop()

	go peer.Probe()

	log.Printf("display engine running: pet=%s panel=%dx%d", cfg.PetName, EPD_WIDTH, EPD_HEIGHT)

	// Main loop. Everything that touches the panel runs here; goroutines
	// only feed the queue and the notification channel.
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-sig:
			log.Println("shutting down")
			coordinator.Shutdown(fonts)
			if closeButtons != nil {
				closeButtons()
			}
			return

		case n := <-api.notify:
			if cfg.DebugMode {
				log.Printf("api notification: %s", n)
			}
			sm.RequestRender()

		case <-clockTick.C:
			sm.TryExclusive(func(current int) {
				if current == 0 {
					home.UpdateClockField()
				}
			})

		case <-petTick.C:
			pet.Decay(time.Now())
			sm.RequestRender()

		case <-probeTick.C:
			go peer.Probe()

		case <-poll.C:
			if ev, ok := queue.Get(0); ok {
				if err := sm.HandleEvent(ev); err != nil {
					if errors.Is(err, errTooManyFailures) {
						log.Fatalf("display unrecoverable: %v", err)
					}
					log.Printf("handling %s: %v", ev, err)
				}
			}
			scheduler.Tick(time.Now())
			if err := sm.RenderCurrent(); err != nil {
				if errors.Is(err, errTooManyFailures) {
					log.Fatalf("display unrecoverable: %v", err)
				}
				log.Printf("render: %v", err)
			}
		}
	}
}
