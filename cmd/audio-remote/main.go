// Command audio-remote reads the remote's buttons and sends playback commands
// to a single WebSocket peer, powering the host down when left idle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/audio-remote/internal/battery"
	"github.com/sweeney/audio-remote/internal/config"
	"github.com/sweeney/audio-remote/internal/discovery"
	"github.com/sweeney/audio-remote/internal/engine"
	"github.com/sweeney/audio-remote/internal/gpio"
	"github.com/sweeney/audio-remote/internal/indicator"
	"github.com/sweeney/audio-remote/internal/logging"
	"github.com/sweeney/audio-remote/internal/logic"
	"github.com/sweeney/audio-remote/internal/mqtt"
	"github.com/sweeney/audio-remote/internal/netinfo"
	"github.com/sweeney/audio-remote/internal/power"
	"github.com/sweeney/audio-remote/internal/status"
	"github.com/sweeney/audio-remote/internal/transport"
	"github.com/sweeney/audio-remote/internal/web"
)

const (
	wirelessInterface = "wlan0"
	shutdownTimeout   = 2 * time.Second
)

type flags struct {
	configPath   string
	printState   bool
	debug        bool
	logFile      string
	writeDefault bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", config.DefaultPath, "Path to the TOML config file")
	flag.BoolVar(&f.printState, "print-state", false, "Print current button levels and exit")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&f.logFile, "log-file", "", "Rotating log file (overrides the config file)")
	flag.BoolVar(&f.writeDefault, "write-default-config", false, "Write the default config to -config and exit")

	flag.Parse()

	if err := run(f); err != nil {
		log.Fatal().Err(err).Msg("audio-remote: fatal")
	}
}

func run(f flags) error {
	fs := afero.NewOsFs()

	if f.writeDefault {
		return writeDefaultConfig(fs, f.configPath, os.Stdout)
	}

	cfg, err := config.Load(fs, f.configPath)
	if err != nil {
		return err
	}

	logFile := cfg.Log.File
	if f.logFile != "" {
		logFile = f.logFile
	}
	logCloser, err := logging.Init(logging.Options{
		Debug:      f.debug,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()

	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if f.printState {
		levels, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Print(formatLevels(cfg.Buttons, levels))
		return nil
	}

	clock := clockwork.NewRealClock()
	start := clock.Now()

	var blinker *indicator.Blinker
	if cfg.GPIO.LEDPin >= 0 {
		led, err := gpio.NewRealLED(cfg.GPIO.Chip, cfg.GPIO.LEDPin)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		defer led.Close()
		blinker = indicator.NewBlinker(led, clock, 4)
	}

	hub := transport.NewHub(transport.Config{
		EventBuffer:    transport.DefaultConfig().EventBuffer,
		PingPeriod:     cfg.PingPeriod(),
		MaxMessageSize: transport.DefaultConfig().MaxMessageSize,
	})
	defer hub.Close()

	tracker := status.NewTracker(clock, start, statusConfig(cfg))
	srv := web.New(cfg.Server.Listen, tracker, hub)

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
		resources  = []power.Resource{{Name: "transport", Closer: hub}, {Name: "http", Closer: srv}}
	)
	if cfg.MQTT.Enabled {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		defer p.Close()
		publisher, mqttStatus = p, p
		resources = append(resources, power.Resource{Name: "mqtt", Closer: p})
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		// The remote stays usable for idle power-down even without a listener.
		log.Error().Err(err).Str("listen", cfg.Server.Listen).Msg("audio-remote: cannot start listener")
		if blinker != nil {
			blinker.Signal(indicator.NetworkFailure)
		}
	} else {
		log.Info().Str("listen", ln.Addr().String()).Msg("audio-remote: websocket endpoint ready")
	}

	if cfg.Discovery.Enabled && ln != nil {
		adv := discovery.New(cfg.Discovery.Instance, cfg.Discovery.Service, listenPort(ln.Addr()), []string{"path=/"}, clock)
		adv.Start()
		defer adv.Close()
		resources = append(resources, power.Resource{Name: "mdns", Closer: adv})
	}

	var powerDown engine.PowerDown
	if cfg.Power.Enabled {
		powerDown = &power.Sequence{
			Resources: resources,
			Network:   power.CommandDisabler{Argv: cfg.Power.NetworkOff},
			Suspender: power.NewSysfsSuspender(fs, cfg.Power.StatePath, cfg.Power.WakeupPath, cfg.Power.Mode),
			Wake:      power.Wake{Offset: cfg.WakePin(), Level: reader.WakeLevel()},
		}
	}

	deps := engine.Deps{
		Clock:      clock,
		Reader:     reader,
		Link:       hub,
		Events:     hub.Events(),
		Publisher:  publisher,
		MQTTStatus: mqttStatus,
		Tracker:    tracker,
		PowerDown:  powerDown,
		Network:    networkInfo(netinfo.NewProbe(fs, wirelessInterface)),
	}
	if blinker != nil {
		deps.Indicator = blinker
	}
	if cfg.Battery.Enabled {
		deps.Voltmeter = battery.NewGauge(battery.NewIIOSampler(fs, cfg.Battery.RawPath), cfg.Calibration())
	}

	eng, err := engine.New(engineOptions(cfg), deps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	reason := ""
	g.Go(func() error {
		select {
		case s := <-sigCh:
			reason = signalName(s)
			log.Info().Str("signal", reason).Msg("audio-remote: shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if blinker != nil {
		g.Go(func() error { return blinker.Run(gctx) })
	}

	if ln != nil {
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			_ = srv.Shutdown(sctx)
			return nil
		})
	}

	g.Go(func() error {
		err := eng.Run(gctx)
		cancel()
		return err
	})

	err = g.Wait()
	if errors.Is(err, engine.ErrSuspended) {
		log.Info().Msg("audio-remote: resumed from suspend, exiting for a clean start")
		return nil
	}
	if reason != "" {
		eng.Shutdown(reason)
	}
	return err
}

func writeDefaultConfig(fs afero.Fs, path string, w io.Writer) error {
	if err := config.WriteDefault(fs, path); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote default config to %s\n", path)
	return nil
}

func engineOptions(cfg config.Config) engine.Options {
	return engine.Options{
		Channels:        cfg.Channels(),
		Timing:          cfg.LogicTiming(),
		Tick:            cfg.Tick(),
		IdleTimeout:     cfg.IdleTimeout(),
		BatteryInterval: cfg.BatteryInterval(),
		LowThreshold:    cfg.Battery.LowThreshold,
		Margin:          cfg.Battery.Margin,
		Heartbeat:       cfg.HeartbeatInterval(),
		MaxMessageSize:  cfg.Server.MaxMessageSize,
	}
}

func statusConfig(cfg config.Config) status.Config {
	sc := status.Config{
		TickMs:        int64(cfg.Timing.TickMS),
		DebounceMs:    int64(cfg.Timing.DebounceMS),
		LongPressMs:   int64(cfg.Timing.LongPressMS),
		RepeatMs:      int64(cfg.Timing.RepeatMS),
		MinIntervalMs: int64(cfg.Timing.MinIntervalMS),
		IdleTimeoutMs: int64(cfg.Timing.IdleTimeoutMS),
		Listen:        cfg.Server.Listen,
	}
	if cfg.MQTT.Enabled {
		sc.Broker = cfg.MQTT.Broker
		sc.HeartbeatMs = cfg.HeartbeatInterval().Milliseconds()
	}
	return sc
}

// networkInfo merges pi-helper's environment with a live address and signal lookup.
func networkInfo(probe *netinfo.Probe) func() *netinfo.NetworkInfo {
	return func() *netinfo.NetworkInfo {
		ip, rssi := probe.Lookup()
		return mergeNetwork(netinfo.FromEnv(), ip, rssi)
	}
}

func mergeNetwork(env *netinfo.NetworkInfo, ip string, rssi int) *netinfo.NetworkInfo {
	if env == nil && ip == "" {
		return nil
	}
	info := &netinfo.NetworkInfo{}
	if env != nil {
		*info = *env
	}
	if ip != "" {
		info.IP = ip
	}
	if rssi != 0 {
		info.RSSI = rssi
	}
	return info
}

func formatLevels(buttons []config.Button, levels map[logic.ChannelID]bool) string {
	out := ""
	for _, b := range buttons {
		state := logic.StateReleased
		if levels[logic.ChannelID(b.ID)] {
			state = logic.StatePressed
		}
		out += fmt.Sprintf("%s (pin %d): %s\n", b.ID, b.Pin, state)
	}
	return out
}

func listenPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
