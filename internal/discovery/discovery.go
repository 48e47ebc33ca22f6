// Package discovery advertises the WebSocket endpoint over mDNS so the player
// app can find the remote without a configured address.
package discovery

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/syncutil"
)

const retryInterval = 10 * time.Second

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, nil)
}

// Advertiser owns one mDNS registration.
type Advertiser struct {
	instance string
	service  string
	port     int
	txt      []string
	clock    clockwork.Clock
	register registerFunc

	mu      syncutil.Mutex
	srv     server
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

// New creates an advertiser for instance/service on port.
func New(instance, service string, port int, txt []string, clock clockwork.Clock) *Advertiser {
	return &Advertiser{
		instance: instance,
		service:  service,
		port:     port,
		txt:      txt,
		clock:    clock,
		register: zeroconfRegister,
	}
}

// Start registers the service. If the network is not ready yet it keeps
// retrying in the background until Close.
func (a *Advertiser) Start() {
	if a.tryRegister() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	log.Info().Dur("retry", retryInterval).Msg("discovery: registration failed, retrying in background")
	go func() {
		defer close(done)
		ticker := a.clock.NewTicker(retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if a.tryRegister() {
					return
				}
			}
		}
	}()
}

func (a *Advertiser) tryRegister() bool {
	srv, err := a.register(a.instance, a.service, "local.", a.port, a.txt)
	if err != nil {
		log.Debug().Err(err).Msg("discovery: register attempt failed")
		return false
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		srv.Shutdown()
		return true
	}
	a.srv = srv
	a.mu.Unlock()

	log.Info().Str("instance", a.instance).Str("service", a.service).Int("port", a.port).Msg("discovery: advertising")
	return true
}

// Registered reports whether the service is currently advertised.
func (a *Advertiser) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.srv != nil
}

// Close withdraws the advertisement and stops any retry loop.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	a.stopped = true
	cancel, done := a.cancel, a.done
	a.cancel = nil
	srv := a.srv
	a.srv = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if srv != nil {
		srv.Shutdown()
		log.Debug().Msg("discovery: advertisement withdrawn")
	}
	return nil
}
