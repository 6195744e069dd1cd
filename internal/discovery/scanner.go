// Package discovery finds ledpanel servers on the local networks.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Defaults for NewScanner
const (
	DefaultPort    = 8080
	DefaultTimeout = 500 * time.Millisecond
	maxInFlight    = 64
)

// Scanner probes every host of the attached IPv4 networks for a panel
type Scanner struct {
	port    int
	timeout time.Duration
	http    *http.Client
}

// NewScanner creates a scanner probing port with a per-host timeout
func NewScanner(port int, timeout time.Duration) *Scanner {
	return &Scanner{
		port:    port,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// ScanResult is a host that answered the health probe
type ScanResult struct {
	IPAddress string
	Port      int
}

// URL returns the server base URL
func (r ScanResult) URL() string {
	return "http://" + net.JoinHostPort(r.IPAddress, strconv.Itoa(r.Port))
}

// ScanNetwork scans the networks of every up, non-loopback interface
func (s *Scanner) ScanNetwork(ctx context.Context) ([]ScanResult, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var hostList []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addresses, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addresses {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			hostList = append(hostList, hosts(ipNet)...)
		}
	}

	return s.ScanHosts(ctx, hostList)
}

// ScanHosts probes each host and returns the ones running a panel server,
// in the order given
func (s *Scanner) ScanHosts(ctx context.Context, hostList []string) ([]ScanResult, error) {
	found := make([]bool, len(hostList))
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	for i, host := range hostList {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			defer func() { <-sem }()
			found[i] = s.Probe(ctx, host)
		}(i, host)
	}
	wg.Wait()

	var results []ScanResult
	for i, ok := range found {
		if ok {
			results = append(results, ScanResult{IPAddress: hostList[i], Port: s.port})
		}
	}
	return results, ctx.Err()
}

// Probe reports whether host answers GET /health with OK
func (s *Scanner) Probe(ctx context.Context, host string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := "http://" + net.JoinHostPort(host, strconv.Itoa(s.port)) + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16))
	if err != nil {
		return false
	}
	return resp.StatusCode == http.StatusOK && strings.TrimSpace(string(body)) == "OK"
}

// hosts lists the usable addresses of an IPv4 network, skipping the network
// and broadcast addresses. Networks wider than /24 are narrowed to the /24
// holding ipNet.IP.
func hosts(ipNet *net.IPNet) []string {
	ip := ipNet.IP.To4()
	if ip == nil {
		return nil
	}
	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	ones, bits := mask.Size()
	switch {
	case bits != 32 || ones > 30:
		return nil
	case ones < 24:
		mask = net.CIDRMask(24, 32)
	}

	network := ip.Mask(mask)
	broadcast := make(net.IP, 4)
	for i := range broadcast {
		broadcast[i] = network[i] | ^mask[i]
	}

	var out []string
	for cur := next(network); !cur.Equal(broadcast); cur = next(cur) {
		out = append(out, cur.String())
	}
	return out
}

func next(ip net.IP) net.IP {
	out := make(net.IP, 4)
	copy(out, ip)
	for i := 3; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}
