package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/robfig/cron/v3"
	"periph.io/x/host/v3"

	"epdradio/internal/canvas"
	"epdradio/internal/config"
	"epdradio/internal/convert"
	"epdradio/internal/epd"
	"epdradio/internal/font"
	"epdradio/internal/knob"
	appLog "epdradio/internal/log"
	"epdradio/internal/mpc"
	"epdradio/internal/radio"
)

type flagConfig struct {
	configPath string
	keys       bool
	test       string
	show       string
}

func main() {
	appLog.Info("epdradio starting", "version", "0.0.1-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"spi_port", conf.SPIPort,
		"spi_hz", conf.SPIHz,
		"orientation", conf.Orientation,
		"playlist", conf.Playlist,
		"volume", conf.Volume,
		"maintenance", conf.Maintenance,
		"keys", flags.keys,
	)

	if _, err := host.Init(); err != nil {
		appLog.Error("host initialisation failed", err)
		os.Exit(1)
	}

	fonts, err := font.Load(conf.Font)
	if err != nil {
		appLog.Error("font load failed", err, "font", conf.Font)
		os.Exit(1)
	}
	img := canvas.New(canvas.ParseOrientation(conf.Orientation), fonts)

	opts := &epd.Opts{
		Port:        conf.SPIPort,
		Hz:          conf.SPIHz,
		DC:          conf.Pins.DC,
		Reset:       conf.Pins.Reset,
		Busy:        conf.Pins.Busy,
		ResetSettle: time.Duration(conf.ResetSettleMs) * time.Millisecond,
		BusyPoll:    time.Duration(conf.BusyPollMs) * time.Millisecond,
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	code := run(ctx, flags, conf, opts, img)
	appLog.Info("epdradio exiting")
	os.Exit(code)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/epdradio/config.yaml", "Path to config file")
	flag.BoolVar(&cfg.keys, "keys", false, "Read selector keys from stdin lines instead of GPIO")
	flag.StringVar(&cfg.test, "test", "", "Panel test mode: wallclock or chrono")
	flag.StringVar(&cfg.show, "show", "", "Dither and display an image file, then exit")

	flag.Parse()

	return cfg
}

func run(ctx context.Context, flags flagConfig, conf *config.Config, opts *epd.Opts, img *canvas.Image) int {
	if flags.show != "" {
		return runShow(opts, img, flags.show)
	}

	screen, err := radio.NewScreen(opts, img)
	if err != nil {
		appLog.Error("panel session failed", err)
		return 1
	}
	defer func() {
		if err := screen.Close(); err != nil {
			appLog.Error("panel shutdown failed", err)
		}
	}()

	if flags.test != "" {
		return runTest(ctx, screen, flags.test)
	}
	return runRadio(ctx, flags, conf, screen)
}

func runRadio(ctx context.Context, flags flagConfig, conf *config.Config, screen *radio.Screen) int {
	player := mpc.New(&mpc.Opts{
		Playlist:     conf.Playlist,
		Volume:       conf.Volume,
		MixerControl: conf.MixerControl,
	})
	if err := player.Initialize(); err != nil {
		appLog.Error("player initialisation failed", err)
		return 1
	}
	if err := screen.Initialize(); err != nil {
		appLog.Error("panel initialisation failed", err)
		return 1
	}

	engine := radio.NewEngine(screen, player, radio.Opts{
		IdleClock: time.Duration(conf.IdleClockS) * time.Second,
		Coalesce:  time.Duration(conf.CoalesceMs) * time.Millisecond,
	})

	if flags.keys {
		go readKeys(ctx, engine)
	} else if err := watchInputs(ctx, conf, engine); err != nil {
		appLog.Error("input setup failed", err)
		return 1
	}

	if conf.Maintenance != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(conf.Maintenance, func() {
			engine.Post(radio.Maintain)
		}); err != nil {
			appLog.Error("maintenance schedule invalid", err, "schedule", conf.Maintenance)
			return 1
		}
		sched.Start()
		defer sched.Stop()
	}

	if err := engine.Run(ctx); err != nil {
		appLog.Error("engine stopped", err)
		return 1
	}
	return 0
}

func runTest(ctx context.Context, screen *radio.Screen, mode string) int {
	var err error
	switch mode {
	case "wallclock":
		err = screen.Wallclock()
	case "chrono":
		err = screen.Chrono(ctx)
	default:
		appLog.Error("unknown test mode", nil, "mode", mode)
		return 2
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("panel test failed", err)
		return 1
	}
	return 0
}

// runShow fits an image file to the panel, dithers it to black and white
// and displays it with one full refresh.
func runShow(opts *epd.Opts, img *canvas.Image, path string) int {
	src, err := imaging.Open(path)
	if err != nil {
		appLog.Error("cannot open image", err, "path", path)
		return 1
	}
	lw := img.Bounds().Dx()
	lh := img.Bounds().Dy()
	bw := convert.Bilevel(imaging.Fit(src, lw, lh, imaging.Lanczos))

	dev, err := epd.Open(opts, false)
	if err != nil {
		appLog.Error("panel session failed", err)
		return 1
	}
	defer func() {
		if err := dev.Sleep(); err != nil {
			appLog.Error("panel sleep failed", err)
		}
		if err := dev.Close(); err != nil {
			appLog.Error("panel shutdown failed", err)
		}
	}()

	img.Clear(false)
	x := (lw - bw.Bounds().Dx()) / 2
	y := (lh - bw.Bounds().Dy()) / 2
	if err := img.Blit(bw, x, y); err != nil {
		appLog.Error("image does not fit the panel", err)
		return 1
	}
	if err := dev.Refresh(img, true); err != nil {
		appLog.Error("panel refresh failed", err)
		return 1
	}
	return 0
}

// watchInputs attaches the rotary encoder and the optional auxiliary
// buttons to the engine queue.
func watchInputs(ctx context.Context, conf *config.Config, engine *radio.Engine) error {
	debounce := time.Duration(conf.DebounceMs) * time.Millisecond
	err := knob.Watch(ctx, &knob.Opts{
		A:        conf.Pins.KnobA,
		B:        conf.Pins.KnobB,
		Button:   conf.Pins.KnobButton,
		Debounce: debounce,
	}, func(ev knob.Event) {
		switch ev {
		case knob.Clockwise:
			engine.Post(radio.Clockwise)
		case knob.Counterclockwise:
			engine.Post(radio.Counterclockwise)
		case knob.ButtonDown:
			engine.Post(radio.Button)
		case knob.ButtonUp:
			// Releases carry no action.
		}
	})
	if err != nil {
		return err
	}
	if conf.Pins.Menu != "" {
		err := knob.WatchButton(ctx, conf.Pins.Menu, debounce, func() {
			engine.Post(radio.Menu)
		})
		if err != nil {
			return err
		}
	}
	if conf.Pins.Cancel != "" {
		err := knob.WatchButton(ctx, conf.Pins.Cancel, debounce, func() {
			engine.Post(radio.Cancel)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// readKeys maps stdin lines onto events for bench use without the
// encoder: z/x step the selector, an empty line toggles editing, a
// cancels, q stops. Lines are read cooked; no terminal raw mode.
func readKeys(ctx context.Context, engine *radio.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "":
			engine.Post(radio.Button)
		case "z":
			engine.Post(radio.Clockwise)
		case "x":
			engine.Post(radio.Counterclockwise)
		case "a":
			engine.Post(radio.Cancel)
		case "q":
			engine.Post(radio.Stop)
			return
		}
	}
}
