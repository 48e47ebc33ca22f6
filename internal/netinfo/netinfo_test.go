package netinfo

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := FromEnv()
	require.NotNil(t, info)
	assert.Equal(t, NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}, *info)
}

func TestFromEnvUnset(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, FromEnv())
}

func probeWith(ifaces []Interface, err error) *Probe {
	p := NewProbe(afero.NewMemMapFs(), "")
	p.interfaces = func() ([]Interface, error) { return ifaces, err }
	return p
}

func TestIPSkipsLoopbackAndDown(t *testing.T) {
	p := probeWith([]Interface{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: []string{"127.0.0.1/8"}},
		{Name: "eth0", Flags: []string{"broadcast"}, Addrs: []string{"10.0.0.5/24"}},
		{Name: "wlan0", Flags: []string{"up", "broadcast"}, Addrs: []string{"fe80::1/64", "192.168.1.40/24"}},
	}, nil)

	ip, err := p.IP()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.40", ip)
}

func TestIPNone(t *testing.T) {
	_, err := probeWith(nil, nil).IP()
	assert.ErrorIs(t, err, ErrNoAddress)

	_, err = probeWith(nil, errors.New("netlink")).IP()
	assert.Error(t, err)
}

const wireless = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   60.  -50.  -256        0      0      0      0    168        0
 wlan1: 0000   40.  -71.  -256        0      0      0      0      0        0
`

func TestRSSI(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, WirelessPath, []byte(wireless), 0o444))

	rssi, err := NewProbe(fs, "").RSSI()
	require.NoError(t, err)
	assert.Equal(t, -50, rssi)

	rssi, err = NewProbe(fs, "wlan1").RSSI()
	require.NoError(t, err)
	assert.Equal(t, -71, rssi)

	_, err = NewProbe(fs, "eth0").RSSI()
	assert.Error(t, err)
}

func TestRSSIMissingTable(t *testing.T) {
	_, err := NewProbe(afero.NewMemMapFs(), "").RSSI()
	assert.Error(t, err)
}

func TestLookupTolerant(t *testing.T) {
	ip, rssi := probeWith(nil, errors.New("netlink")).Lookup()
	assert.Empty(t, ip)
	assert.Zero(t, rssi)
}
