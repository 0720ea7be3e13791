// Package network builds proxy-aware dialers for the telemetry sinks.
package network

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// NewSOCKS5Dialer returns a dialer that connects through the SOCKS5 proxy at
// host:port.
func NewSOCKS5Dialer(host string, port int) (proxy.Dialer, error) {
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", addr, err)
	}
	return dialer, nil
}

// ContextDialer returns a context-aware dial function for clients that accept
// one (go-redis). It returns nil when host is empty, meaning dial directly.
func ContextDialer(host string, port int) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if host == "" {
		return nil, nil
	}
	dialer, err := NewSOCKS5Dialer(host, port)
	if err != nil {
		return nil, err
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}, nil
	}
	return cd.DialContext, nil
}
