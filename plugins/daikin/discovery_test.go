package daikin

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDiscover(t *testing.T) {
	adapter, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer adapter.Close()

	go func() {
		buf := make([]byte, 512)
		for {
			n, from, err := adapter.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if string(buf[:n]) != discoveryMessage {
				continue
			}
			// Adapters answer more than once; replies are deduplicated by MAC.
			for i := 0; i < 2; i++ {
				_, _ = adapter.WriteToUDP([]byte(fakeBasicInfo), from)
			}
			_, _ = adapter.WriteToUDP([]byte("ret=PARAM NG"), from)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	units, err := Discover(ctx, DiscoverOptions{
		ListenAddr:    "127.0.0.1:0",
		BroadcastAddr: adapter.LocalAddr().String(),
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected one unit, got %+v", units)
	}
	u := units[0]
	if u.MAC != fakeMAC || u.Name != "Lounge" || u.Host != "127.0.0.1" {
		t.Fatalf("unexpected unit %+v", u)
	}
}

func TestDiscoverNothing(t *testing.T) {
	silent, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer silent.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	units, err := Discover(ctx, DiscoverOptions{
		ListenAddr:    "127.0.0.1:0",
		BroadcastAddr: silent.LocalAddr().String(),
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected no units, got %+v", units)
	}
}
