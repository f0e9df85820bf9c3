// Package mpc drives the MPD media player through the mpc command-line
// client, plus one amixer call to unmute the output at startup. Command
// execution is injectable so tests can script the player without external
// processes.
package mpc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	applog "epdradio/internal/log"
	"epdradio/internal/model"
)

// callTimeout bounds a single external command invocation.
const callTimeout = 2 * time.Second

// Runner executes one external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// execRunner is the production Runner. It reports a plain
// context.DeadlineExceeded when the call ran out of time so the retry loop
// can tell timeouts from real failures.
func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", fmt.Errorf("mpc: %s: %w", name, err)
	}
	return string(out), nil
}

// Opts configures the client.
type Opts struct {
	// Playlist is the saved playlist to load.
	Playlist string
	// Volume in percent, applied at initialization.
	Volume int
	// MixerControl is the ALSA control for the startup amixer call; empty
	// skips it.
	MixerControl string
	// Runner substitutes command execution. Nil uses exec.
	Runner Runner
}

// Client holds the loaded station list and the currently playing position.
type Client struct {
	runner   Runner
	playlist string
	volume   int
	mixer    string

	stations []model.Station
	names    map[int]string
	current  int
}

// New returns an uninitialized client; call Initialize before use.
func New(o *Opts) *Client {
	r := o.Runner
	if r == nil {
		r = execRunner
	}
	playlist := o.Playlist
	if playlist == "" {
		playlist = "iradio"
	}
	volume := o.Volume
	if volume <= 0 || volume > 100 {
		volume = 100
	}
	return &Client{
		runner:   r,
		playlist: playlist,
		volume:   volume,
		mixer:    o.MixerControl,
		names:    make(map[int]string),
	}
}

// execute runs one external command. Timeouts are retried without backoff
// or cap; a hung player daemon therefore blocks the caller, the same way a
// stuck panel does. Other failures surface to the caller.
func (c *Client) execute(args ...string) (string, error) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		out, err := c.runner(ctx, args[0], args[1:]...)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			applog.Info("player call timed out, retrying", "cmd", strings.Join(args, " "))
			continue
		}
		return out, err
	}
}

// Initialize unmutes the mixer, reloads the playlist, applies the volume,
// parses the station list and starts playback.
func (c *Client) Initialize() error {
	if c.mixer != "" {
		if _, err := c.execute("amixer", "cset", c.mixer, "--", "100%"); err != nil {
			return err
		}
	}
	if _, err := c.execute("mpc", "stop"); err != nil {
		return err
	}
	if _, err := c.execute("mpc", "clear"); err != nil {
		return err
	}
	if _, err := c.execute("mpc", "load", c.playlist); err != nil {
		return err
	}
	if _, err := c.execute("mpc", "volume", strconv.Itoa(c.volume)); err != nil {
		return err
	}

	out, err := c.execute("mpc", "playlist", "-f", "%position%: %name%")
	if err != nil {
		return err
	}
	stations, names, err := parsePlaylist(out)
	if err != nil {
		return err
	}
	if len(stations) == 0 {
		return fmt.Errorf("mpc: playlist %q is empty", c.playlist)
	}
	c.stations = stations
	c.names = names
	for _, st := range stations {
		applog.Info("station", "position", st.Position, "name", st.Name)
	}

	if _, err := c.execute("mpc", "play"); err != nil {
		return err
	}
	return c.loadCurrent()
}

// Select starts playback of the given playlist position.
func (c *Client) Select(position int) error {
	if _, err := c.execute("mpc", "play", strconv.Itoa(position)); err != nil {
		return err
	}
	return c.loadCurrent()
}

// Stop halts playback.
func (c *Client) Stop() error {
	_, err := c.execute("mpc", "stop")
	return err
}

// Current returns the playing playlist position.
func (c *Client) Current() int {
	return c.current
}

// Stations returns the parsed playlist in position order. Callers must not
// mutate the slice.
func (c *Client) Stations() []model.Station {
	return c.stations
}

// Name returns the display label for a position, or "" if unknown.
func (c *Client) Name(position int) string {
	return c.names[position]
}

func (c *Client) loadCurrent() error {
	out, err := c.execute("mpc", "-f", "%position%: %title%")
	if err != nil {
		return err
	}
	line, _, _ := strings.Cut(out, "\n")
	pos, _, err := splitPosition(line)
	if err != nil {
		return err
	}
	c.current = pos
	applog.Info("player current", "position", pos, "name", c.names[pos])
	return nil
}

// parsePlaylist reads "position: name" lines. Parsing stops at the first
// blank line. Station labels keep only the text before the first dash,
// trimmed, because playlist names carry "Station - Slogan" descriptions
// too wide for the panel.
func parsePlaylist(out string) ([]model.Station, map[int]string, error) {
	var stations []model.Station
	names := make(map[int]string)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			break
		}
		pos, rest, err := splitPosition(line)
		if err != nil {
			return nil, nil, err
		}
		name := strings.TrimSpace(strings.SplitN(rest, "-", 2)[0])
		stations = append(stations, model.Station{Position: pos, Name: name})
		names[pos] = name
	}
	sort.Slice(stations, func(i, j int) bool {
		return stations[i].Position < stations[j].Position
	})
	return stations, names, nil
}

// splitPosition parses one "position: rest" line.
func splitPosition(line string) (int, string, error) {
	spos, rest, found := strings.Cut(line, ":")
	if !found {
		return 0, "", fmt.Errorf("mpc: malformed player line %q", line)
	}
	pos, err := strconv.Atoi(strings.TrimSpace(spos))
	if err != nil {
		return 0, "", fmt.Errorf("mpc: malformed position in %q", line)
	}
	return pos, rest, nil
}
