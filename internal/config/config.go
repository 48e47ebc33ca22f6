// Package config loads the remote's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/sweeney/audio-remote/internal/battery"
	"github.com/sweeney/audio-remote/internal/gpio"
	"github.com/sweeney/audio-remote/internal/logic"
)

// DefaultPath is where the service looks for its config file.
const DefaultPath = "/etc/audio-remote/config.toml"

// Button binds one GPIO line to its commands.
type Button struct {
	ID               string `toml:"id" validate:"required"`
	Pin              int    `toml:"pin" validate:"gte=0"`
	Short            string `toml:"short" validate:"required,command"`
	Repeat           string `toml:"repeat,omitempty" validate:"omitempty,command"`
	CaptureTimestamp bool   `toml:"capture_timestamp,omitempty"`
	Wake             bool   `toml:"wake,omitempty"`
}

// GPIO selects the chip and indicator line.
type GPIO struct {
	Chip string `toml:"chip" validate:"required"`
	// LEDPin < 0 disables the indicator.
	LEDPin int `toml:"led_pin"`
}

// Timing holds all thresholds in milliseconds.
type Timing struct {
	TickMS        int `toml:"tick_ms" validate:"gt=0"`
	DebounceMS    int `toml:"debounce_ms" validate:"gt=0"`
	LongPressMS   int `toml:"long_press_ms" validate:"gtfield=DebounceMS"`
	RepeatMS      int `toml:"repeat_ms" validate:"gt=0"`
	MinIntervalMS int `toml:"min_interval_ms" validate:"gte=0"`
	// IdleTimeoutMS of zero disables power-down.
	IdleTimeoutMS int `toml:"idle_timeout_ms" validate:"gte=0"`
}

// Battery configures the ADC and low-voltage warning.
type Battery struct {
	Enabled          bool    `toml:"enabled"`
	RawPath          string  `toml:"raw_path"`
	ADCMax           int     `toml:"adc_max" validate:"gt=0"`
	ReferenceVoltage float64 `toml:"reference_voltage" validate:"gt=0"`
	DividerRatio     float64 `toml:"divider_ratio" validate:"gt=0"`
	LowThreshold     float64 `toml:"low_threshold" validate:"gt=0"`
	Margin           float64 `toml:"margin" validate:"gte=0"`
	CheckIntervalMS  int     `toml:"check_interval_ms" validate:"gt=0"`
}

// Server configures the WebSocket and status listener.
type Server struct {
	Listen         string `toml:"listen" validate:"required"`
	MaxMessageSize int    `toml:"max_message_size" validate:"gte=64"`
	PingPeriodMS   int    `toml:"ping_period_ms" validate:"gte=0"`
}

// MQTT configures the optional telemetry mirror.
type MQTT struct {
	Enabled          bool   `toml:"enabled"`
	Broker           string `toml:"broker" validate:"required_if=Enabled true"`
	ClientID         string `toml:"client_id"`
	TopicPrefix      string `toml:"topic_prefix" validate:"required_if=Enabled true"`
	HeartbeatMinutes int    `toml:"heartbeat_minutes" validate:"gte=0"`
}

// Discovery configures mDNS advertisement.
type Discovery struct {
	Enabled  bool   `toml:"enabled"`
	Instance string `toml:"instance" validate:"required_if=Enabled true"`
	Service  string `toml:"service" validate:"required_if=Enabled true"`
}

// Power configures suspend.
type Power struct {
	Enabled    bool     `toml:"enabled"`
	StatePath  string   `toml:"state_path"`
	WakeupPath string   `toml:"wakeup_path"`
	Mode       string   `toml:"mode" validate:"oneof=mem freeze standby"`
	NetworkOff []string `toml:"network_off"`
}

// Log configures the rotating log file.
type Log struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
}

// Config is the complete service configuration.
type Config struct {
	Buttons   []Button  `toml:"buttons" validate:"required,min=1,unique=ID,unique=Pin,dive"`
	GPIO      GPIO      `toml:"gpio"`
	Timing    Timing    `toml:"timing"`
	Battery   Battery   `toml:"battery"`
	Server    Server    `toml:"server"`
	MQTT      MQTT      `toml:"mqtt"`
	Discovery Discovery `toml:"discovery"`
	Power     Power     `toml:"power"`
	Log       Log       `toml:"log"`
}

// Defaults returns the stock eight-button layout.
func Defaults() Config {
	return Config{
		Buttons: []Button{
			{ID: "play_pause", Pin: 17, Short: string(logic.CmdPlayPause), Wake: true},
			{ID: "next", Pin: 27, Short: string(logic.CmdNext)},
			{ID: "prev", Pin: 22, Short: string(logic.CmdPrev)},
			{ID: "volume_up", Pin: 23, Short: string(logic.CmdVolumeUp), Repeat: string(logic.CmdVolumeUp)},
			{ID: "volume_down", Pin: 24, Short: string(logic.CmdVolumeDown), Repeat: string(logic.CmdVolumeDown)},
			{ID: "speed_cycle", Pin: 5, Short: string(logic.CmdSpeedCycle)},
			{ID: "repeat_cycle", Pin: 6, Short: string(logic.CmdRepeatCycle)},
			{ID: "note", Pin: 13, Short: string(logic.CmdNote), CaptureTimestamp: true},
		},
		GPIO: GPIO{Chip: gpio.DefaultChip, LEDPin: 18},
		Timing: Timing{
			TickMS:        5,
			DebounceMS:    50,
			LongPressMS:   1500,
			RepeatMS:      200,
			MinIntervalMS: 100,
			IdleTimeoutMS: 300000,
		},
		Battery: Battery{
			Enabled:          true,
			RawPath:          battery.DefaultRawPath,
			ADCMax:           4095,
			ReferenceVoltage: 3.3,
			DividerRatio:     2.0,
			LowThreshold:     3.2,
			Margin:           0.1,
			CheckIntervalMS:  30000,
		},
		Server: Server{Listen: ":81", MaxMessageSize: 256, PingPeriodMS: 15000},
		MQTT: MQTT{
			ClientID:         "audio-remote",
			TopicPrefix:      "audio-remote",
			HeartbeatMinutes: 15,
		},
		Discovery: Discovery{Enabled: true, Instance: "audio-remote", Service: "_audioremote._tcp"},
		Power:     Power{Enabled: true, Mode: "mem", NetworkOff: []string{"rfkill", "block", "wlan"}},
		Log:       Log{MaxSizeMB: 1, MaxBackups: 2},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("command", func(fl validator.FieldLevel) bool {
		return logic.Command(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the config, reporting every invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if n := c.wakeButtons(); n > 1 {
		return fmt.Errorf("invalid config: %d buttons marked wake, at most one allowed", n)
	}
	return nil
}

func (c Config) wakeButtons() int {
	n := 0
	for _, b := range c.Buttons {
		if b.Wake {
			n++
		}
	}
	return n
}

// Load reads path from fs over the defaults. A missing file yields the defaults.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Defaults()

	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := Parse(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes TOML over cfg. Arrays present in data replace the defaults
// rather than extending them.
func Parse(data []byte, cfg *Config) error {
	var present struct {
		Buttons []Button `toml:"buttons"`
		Power   struct {
			NetworkOff *[]string `toml:"network_off"`
		} `toml:"power"`
	}
	if err := toml.Unmarshal(data, &present); err == nil {
		if present.Buttons != nil {
			cfg.Buttons = nil
		}
		if present.Power.NetworkOff != nil {
			cfg.Power.NetworkOff = nil
		}
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("parse config at %d:%d: %w", row, col, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// WriteDefault writes the defaults to path, creating parent directories.
func WriteDefault(fs afero.Fs, path string) error {
	data, err := toml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Channels converts the button table into channel configs, in file order.
func (c Config) Channels() []logic.ChannelConfig {
	out := make([]logic.ChannelConfig, 0, len(c.Buttons))
	for _, b := range c.Buttons {
		out = append(out, logic.ChannelConfig{
			ID:               logic.ChannelID(b.ID),
			Short:            logic.Command(b.Short),
			Repeat:           logic.Command(b.Repeat),
			CaptureTimestamp: b.CaptureTimestamp,
		})
	}
	return out
}

// Pins returns the GPIO offsets of every button.
func (c Config) Pins() []gpio.Pin {
	out := make([]gpio.Pin, 0, len(c.Buttons))
	for _, b := range c.Buttons {
		out = append(out, gpio.Pin{ID: logic.ChannelID(b.ID), Offset: b.Pin})
	}
	return out
}

// WakePin returns the offset of the wake button, or the first button when none is marked.
func (c Config) WakePin() int {
	for _, b := range c.Buttons {
		if b.Wake {
			return b.Pin
		}
	}
	if len(c.Buttons) > 0 {
		return c.Buttons[0].Pin
	}
	return -1
}

// LogicTiming converts Timing to the logic package form.
func (c Config) LogicTiming() logic.Timing {
	return logic.Timing{
		Debounce:    ms(c.Timing.DebounceMS),
		LongPress:   ms(c.Timing.LongPressMS),
		Repeat:      ms(c.Timing.RepeatMS),
		MinInterval: ms(c.Timing.MinIntervalMS),
	}
}

// Tick is the polling period.
func (c Config) Tick() time.Duration { return ms(c.Timing.TickMS) }

// IdleTimeout is the power-down window.
func (c Config) IdleTimeout() time.Duration { return ms(c.Timing.IdleTimeoutMS) }

// BatteryInterval is the sampling period.
func (c Config) BatteryInterval() time.Duration { return ms(c.Battery.CheckIntervalMS) }

// PingPeriod is the WebSocket keep-alive period.
func (c Config) PingPeriod() time.Duration { return ms(c.Server.PingPeriodMS) }

// Calibration returns the ADC calibration.
func (c Config) Calibration() battery.Calibration {
	return battery.Calibration{
		ADCMax:           c.Battery.ADCMax,
		ReferenceVoltage: c.Battery.ReferenceVoltage,
		DividerRatio:     c.Battery.DividerRatio,
	}
}

// HeartbeatInterval is the MQTT heartbeat period.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.MQTT.HeartbeatMinutes) * time.Minute
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
