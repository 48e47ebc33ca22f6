package power

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Default sysfs locations.
const (
	DefaultStatePath  = "/sys/power/state"
	DefaultWakeupPath = "/sys/devices/platform/gpio-keys/power/wakeup"
)

// PinPlaceholder in a wakeup path is replaced by the wake pin's offset.
const PinPlaceholder = "{pin}"

// SysfsSuspender suspends through /sys/power/state.
//
// The wakeup path selects which device may wake the host. The default path
// is the gpio-keys platform device, so the configured wake button must be
// the key bound to gpio-keys in the device tree. A path containing
// PinPlaceholder names a per-line wakeup control instead.
type SysfsSuspender struct {
	fs         afero.Fs
	statePath  string
	wakeupPath string
	mode       string
	sync       func()
}

// NewSysfsSuspender creates a suspender writing mode ("mem", "freeze") to statePath.
func NewSysfsSuspender(fs afero.Fs, statePath, wakeupPath, mode string) *SysfsSuspender {
	if statePath == "" {
		statePath = DefaultStatePath
	}
	if wakeupPath == "" {
		wakeupPath = DefaultWakeupPath
	}
	if mode == "" {
		mode = "mem"
	}
	return &SysfsSuspender{
		fs:         fs,
		statePath:  statePath,
		wakeupPath: wakeupPath,
		mode:       mode,
		sync:       syncFilesystems,
	}
}

// ConfigureWake enables the wakeup control for the wake pin. The trigger
// level is fixed by the device tree; it is only logged here.
func (s *SysfsSuspender) ConfigureWake(offset, level int) error {
	path := s.WakeupPathFor(offset)
	if err := afero.WriteFile(s.fs, path, []byte("enabled"), 0o644); err != nil {
		return fmt.Errorf("enable wakeup %s: %w", path, err)
	}
	log.Debug().Int("pin", offset).Int("level", level).Str("path", path).Msg("power: wake armed")
	return nil
}

// WakeupPathFor returns the wakeup control written for pin offset.
func (s *SysfsSuspender) WakeupPathFor(offset int) string {
	return strings.ReplaceAll(s.wakeupPath, PinPlaceholder, strconv.Itoa(offset))
}

// Suspend flushes filesystems and enters the configured sleep state.
func (s *SysfsSuspender) Suspend() error {
	states, err := afero.ReadFile(s.fs, s.statePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.statePath, err)
	}
	if !supports(string(states), s.mode) {
		return fmt.Errorf("sleep state %q not offered by %s (%s)", s.mode, s.statePath, strings.TrimSpace(string(states)))
	}

	s.sync()
	if err := afero.WriteFile(s.fs, s.statePath, []byte(s.mode), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.statePath, err)
	}
	return nil
}

func supports(states, mode string) bool {
	for _, s := range strings.Fields(states) {
		if s == mode {
			return true
		}
	}
	return false
}

// CommandDisabler runs an external command (for example "rfkill block wlan").
type CommandDisabler struct {
	Argv []string
}

// Disable runs the command and reports its output on failure.
func (c CommandDisabler) Disable(ctx context.Context) error {
	if len(c.Argv) == 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(c.Argv, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
