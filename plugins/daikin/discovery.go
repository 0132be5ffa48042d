package daikin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	discoveryMessage   = "DAIKIN_UDP/common/basic_info"
	discoveryListen    = ":30000"
	discoveryBroadcast = "255.255.255.255:30050"
	defaultDiscovery   = 2 * time.Second
)

// DiscoveredUnit is an adapter that answered a discovery broadcast.
type DiscoveredUnit struct {
	Host   string
	MAC    string
	Name   string
	Values Values
}

// DiscoverOptions overrides the discovery addresses.
type DiscoverOptions struct {
	ListenAddr    string
	BroadcastAddr string
}

// Discover broadcasts a basic_info probe and collects replies until ctx is
// done. If ctx has no deadline, a 2 second timeout is applied.
func Discover(ctx context.Context, opts DiscoverOptions) ([]DiscoveredUnit, error) {
	if opts.ListenAddr == "" {
		opts.ListenAddr = discoveryListen
	}
	if opts.BroadcastAddr == "" {
		opts.BroadcastAddr = discoveryBroadcast
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDiscovery)
		defer cancel()
	}

	laddr, err := net.ResolveUDPAddr("udp4", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address: %w", err)
	}
	raddr, err := net.ResolveUDPAddr("udp4", opts.BroadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte(discoveryMessage), raddr); err != nil {
		return nil, fmt.Errorf("send probe: %w", err)
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	seen := make(map[string]bool)
	var units []DiscoveredUnit
	buf := make([]byte, 4096)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return units, nil
			}
			if ctx.Err() != nil {
				return units, nil
			}
			return units, fmt.Errorf("read reply: %w", err)
		}

		values, err := ParseResponse(string(buf[:n]))
		if err != nil {
			continue
		}
		mac, _ := values.Get("mac")
		if mac == "" || seen[mac] {
			continue
		}
		seen[mac] = true
		name, _ := values.Get("name")
		units = append(units, DiscoveredUnit{
			Host:   from.IP.String(),
			MAC:    mac,
			Name:   name,
			Values: values,
		})
	}
}
