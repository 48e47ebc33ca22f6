// Package netinfo reports the host's address and Wi-Fi signal for status
// replies and the status page.
package netinfo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/spf13/afero"
)

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// WirelessPath is the kernel's wireless statistics table.
const WirelessPath = "/proc/net/wireless"

// ErrNoAddress is returned when no usable IPv4 address is configured.
var ErrNoAddress = errors.New("netinfo: no usable ipv4 address")

// NetworkInfo is the network state shown on the status page.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
	RSSI       int
}

// FromEnv reads what pi-helper exported. Nil when pi-helper has not run.
func FromEnv() *NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// Interface is the subset of an interface description used for address selection.
type Interface struct {
	Name  string
	Flags []string
	Addrs []string
}

// Probe looks up live network details.
type Probe struct {
	fs         afero.Fs
	iface      string
	interfaces func() ([]Interface, error)
}

// NewProbe creates a probe for the wireless interface iface ("" picks the first listed).
func NewProbe(fs afero.Fs, iface string) *Probe {
	return &Probe{fs: fs, iface: iface, interfaces: systemInterfaces}
}

func systemInterfaces() ([]Interface, error) {
	stats, err := psnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(stats))
	for _, s := range stats {
		iface := Interface{Name: s.Name, Flags: s.Flags}
		for _, a := range s.Addrs {
			iface.Addrs = append(iface.Addrs, a.Addr)
		}
		out = append(out, iface)
	}
	return out, nil
}

// IP returns the first IPv4 address of an up, non-loopback interface.
func (p *Probe) IP() (string, error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a)
			if err != nil {
				continue
			}
			if addr := prefix.Addr(); addr.Is4() && !addr.IsLoopback() {
				return addr.String(), nil
			}
		}
	}
	return "", ErrNoAddress
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// RSSI returns the signal level in dBm of the wireless interface.
func (p *Probe) RSSI() (int, error) {
	data, err := afero.ReadFile(p.fs, WirelessPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", WirelessPath, err)
	}
	return parseWireless(data, p.iface)
}

// parseWireless extracts the level column. Rows look like
// " wlan0: 0000   60.  -50.  -256  0 0 0 0 168 0".
func parseWireless(data []byte, iface string) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if strings.Contains(name, "|") || (iface != "" && name != iface) {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("wireless row for %s: too few columns", name)
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("wireless row for %s: %w", name, err)
		}
		return int(level), nil
	}
	if iface == "" {
		return 0, errors.New("netinfo: no wireless interface")
	}
	return 0, fmt.Errorf("netinfo: interface %s not wireless", iface)
}

// Lookup returns the IP and RSSI, leaving fields zero when unavailable.
func (p *Probe) Lookup() (ip string, rssi int) {
	ip, _ = p.IP()
	rssi, _ = p.RSSI()
	return ip, rssi
}
