package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultService is the mDNS service name without domain suffix.
	DefaultService = "_netrunner._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultRefreshInterval is the background server discovery interval.
	DefaultRefreshInterval = 10 * time.Second
	// DefaultScanTimeout bounds each discovery scan.
	DefaultScanTimeout = 3 * time.Second
)

type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Config controls mDNS server scanning behavior.
type Config struct {
	Service         string
	Domain          string
	RefreshInterval time.Duration
	ScanTimeout     time.Duration

	browseFn browseFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = DefaultRefreshInterval
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = DefaultScanTimeout
	}
	return out
}

// DiscoveredServer contains a chat server endpoint found on the LAN.
type DiscoveredServer struct {
	Name       string
	HostName   string
	Port       int
	Addresses  []string
	SocketPath string
	Secure     bool
	LastSeen   time.Time
}

// BaseURL renders the server's HTTP base URL from its first address.
func (d DiscoveredServer) BaseURL() string {
	if len(d.Addresses) == 0 || d.Port <= 0 {
		return ""
	}
	scheme := "http"
	if d.Secure {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(d.Addresses[0], strconv.Itoa(d.Port))
}

func parseEntry(entry *zeroconf.ServiceEntry) (DiscoveredServer, bool) {
	name := strings.TrimSpace(entry.Instance)
	if name == "" {
		return DiscoveredServer{}, false
	}

	txt := txtToMap(entry.Text)

	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	seen := make(map[string]struct{})
	for _, ip := range append(entry.AddrIPv4, entry.AddrIPv6...) {
		if ip == nil {
			continue
		}
		raw := ip.String()
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		addresses = append(addresses, raw)
	}
	if len(addresses) == 0 {
		return DiscoveredServer{}, false
	}

	return DiscoveredServer{
		Name:       name,
		HostName:   entry.HostName,
		Port:       entry.Port,
		Addresses:  addresses,
		SocketPath: txt["path"],
		Secure:     txt["tls"] == "1",
	}, true
}

func txtToMap(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, record := range records {
		key, value, found := strings.Cut(record, "=")
		if !found {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

func serversEqual(a, b DiscoveredServer) bool {
	if a.Name != b.Name || a.HostName != b.HostName || a.Port != b.Port ||
		a.SocketPath != b.SocketPath || a.Secure != b.Secure {
		return false
	}
	if len(a.Addresses) != len(b.Addresses) {
		return false
	}
	for i := range a.Addresses {
		if a.Addresses[i] != b.Addresses[i] {
			return false
		}
	}
	return true
}
