package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// PinsConfig names the GPIO lines wired to the panel and the controls.
// Names are resolved through periph's gpioreg, so BCM numbering is written
// as "GPIO<n>".
type PinsConfig struct {
	// DC selects command (low) vs. data (high) on the panel bus.
	DC string `yaml:"dc"`
	// Reset is the panel hardware-reset line.
	Reset string `yaml:"reset"`
	// Busy is the panel busy line (high while the controller works).
	Busy string `yaml:"busy"`

	// KnobA / KnobB are the quadrature channels of the rotary encoder.
	KnobA string `yaml:"knob_a"`
	KnobB string `yaml:"knob_b"`
	// KnobButton is the encoder's integrated push switch.
	KnobButton string `yaml:"knob_button"`

	// Menu / Cancel are the two auxiliary push buttons. Empty disables one.
	Menu   string `yaml:"menu"`
	Cancel string `yaml:"cancel"`
}

// Config is the top-level application configuration.
type Config struct {
	// SPIPort is the periph spireg port name; empty selects the first
	// registered port (typically /dev/spidev0.0 on a Pi).
	SPIPort string `yaml:"spi_port"`

	// SPIHz is the bus clock in hertz.
	SPIHz int64 `yaml:"spi_hz"`

	// Pins holds the GPIO assignments.
	Pins PinsConfig `yaml:"pins"`

	// ResetSettleMs is the settle delay applied after each phase of the
	// hardware reset pulse. Known-good values differ per wiring (20ms on
	// the Pi HAT, 200ms on FTDI bridges), so it is a plain knob rather
	// than something probed at runtime.
	ResetSettleMs int `yaml:"reset_settle_ms"`

	// BusyPollMs is the busy-line polling interval.
	BusyPollMs int `yaml:"busy_poll_ms"`

	// Orientation selects the logical drawing surface mapping:
	// "reversed" (default, connector on the left) or "landscape".
	Orientation string `yaml:"orientation"`

	// Font is a path to a TrueType/OpenType file. Empty uses the built-in
	// Go Mono Bold face.
	Font string `yaml:"font"`

	// Playlist is the saved playlist name loaded into the player on start.
	Playlist string `yaml:"playlist"`

	// Volume is the player volume in percent, applied on start.
	Volume int `yaml:"volume"`

	// MixerControl is the ALSA control passed to amixer at startup
	// (e.g. "numid=1"). Empty skips the amixer call.
	MixerControl string `yaml:"mixer_control"`

	// IdleClockS is the browsing-mode idle interval, in seconds, after
	// which the title-bar clock repaints.
	IdleClockS int `yaml:"idle_clock_s"`

	// CoalesceMs is the settle window used to merge bursts of rotation
	// events into one cursor move.
	CoalesceMs int `yaml:"coalesce_ms"`

	// DebounceMs is the push-button debounce interval.
	DebounceMs int `yaml:"debounce_ms"`

	// Maintenance is a cron expression for the scheduled full-refresh
	// pass that clears partial-update ghosting. Empty disables it.
	Maintenance string `yaml:"maintenance"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns an in-memory default configuration matching the
// reference appliance wiring.
func DefaultConfig() *Config {
	return &Config{
		SPIPort: "",
		SPIHz:   3_000_000,
		Pins: PinsConfig{
			DC:         "GPIO5",
			Reset:      "GPIO6",
			Busy:       "GPIO12",
			KnobA:      "GPIO23",
			KnobB:      "GPIO24",
			KnobButton: "GPIO17",
			Menu:       "GPIO22",
			Cancel:     "GPIO27",
		},
		ResetSettleMs: 20,
		BusyPollMs:    50,
		Orientation:   "reversed",
		Font:          "",
		Playlist:      "iradio",
		Volume:        100,
		MixerControl:  "numid=1",
		IdleClockS:    30,
		CoalesceMs:    200,
		DebounceMs:    200,
		Maintenance:   "0 3 * * *",
		LogLevel:      "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.SPIHz <= 0 {
		c.SPIHz = def.SPIHz
	}
	if c.Pins.DC == "" {
		c.Pins.DC = def.Pins.DC
	}
	if c.Pins.Reset == "" {
		c.Pins.Reset = def.Pins.Reset
	}
	if c.Pins.Busy == "" {
		c.Pins.Busy = def.Pins.Busy
	}
	if c.Pins.KnobA == "" {
		c.Pins.KnobA = def.Pins.KnobA
	}
	if c.Pins.KnobB == "" {
		c.Pins.KnobB = def.Pins.KnobB
	}
	if c.Pins.KnobButton == "" {
		c.Pins.KnobButton = def.Pins.KnobButton
	}
	// Menu/Cancel may legitimately be unwired, so no fallback for them.

	if c.ResetSettleMs <= 0 {
		c.ResetSettleMs = def.ResetSettleMs
	}
	if c.BusyPollMs <= 0 {
		c.BusyPollMs = def.BusyPollMs
	}

	// Orientation default & validation.
	switch c.Orientation {
	case "reversed", "landscape":
		// ok
	default:
		// Unknown value; fall back to the reference wiring.
		c.Orientation = def.Orientation
	}

	if c.Playlist == "" {
		c.Playlist = def.Playlist
	}
	if c.Volume <= 0 || c.Volume > 100 {
		c.Volume = def.Volume
	}
	if c.IdleClockS <= 0 {
		c.IdleClockS = def.IdleClockS
	}
	if c.CoalesceMs <= 0 {
		c.CoalesceMs = def.CoalesceMs
	}
	if c.DebounceMs <= 0 {
		c.DebounceMs = def.DebounceMs
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".epdradio-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
