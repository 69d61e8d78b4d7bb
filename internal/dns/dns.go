package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// fallbackServers are public resolvers raced when the system resolver
// cannot answer. Meeting joins must not die on a broken local DNS setup.
var fallbackServers = []string{
	"1.1.1.1",                // Cloudflare
	"1.0.0.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"8.8.4.4",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
}

const (
	localTimeout    = time.Second
	fallbackTimeout = 2 * time.Second
)

// Lookup resolves host to a single IP, preferring IPv4. IP literals pass
// through untouched. The system resolver is tried first; on failure the
// public resolvers are raced and the first answer wins.
func Lookup(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
	ip, err := resolve(ctx, &net.Resolver{}, host)
	cancel()
	if err == nil {
		return ip, nil
	}

	return raceFallbacks(host)
}

func raceFallbacks(host string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fallbackTimeout)
	defer cancel()

	answers := make(chan string, len(fallbackServers))
	for _, server := range fallbackServers {
		go func(server string) {
			ip, err := resolve(ctx, resolverVia(server), host)
			if err != nil {
				answers <- ""
				return
			}
			answers <- ip
		}(server)
	}

	for range fallbackServers {
		select {
		case ip := <-answers:
			if ip != "" {
				return ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: fallback resolvers timed out", host)
		}
	}
	return "", fmt.Errorf("resolve %s: every fallback resolver failed", host)
}

// resolverVia builds a resolver pinned to one upstream DNS server.
func resolverVia(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

func resolve(ctx context.Context, r *net.Resolver, host string) (string, error) {
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("empty answer")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
