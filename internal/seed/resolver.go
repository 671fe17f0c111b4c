// Package seed resolves bootstrap peers from DNS seeds.
//
// A DNS seed is a hostname whose A and AAAA records list reachable peers.
// Seeds cannot filter by capability, so every returned endpoint carries the
// network's default port and no service information.
package seed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	klog "github.com/Klingon-tech/klingnet-addrbook/internal/log"
	"github.com/miekg/dns"
)

// ErrNoSeeds is returned when the resolver has no seeds configured.
var ErrNoSeeds = errors.New("no dns seeds configured")

// LookupFunc returns the IP addresses a host name resolves to.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// Config holds resolver settings.
type Config struct {
	Seeds []string // seed host names, queried in order
	Port  uint16   // port attached to every resolved address

	// Server is the DNS server (host:port) queried with miekg/dns. Empty
	// means the system resolver.
	Server string

	// Lookup overrides the resolution function (tests).
	Lookup LookupFunc
}

// Resolver queries DNS seeds for peer addresses.
type Resolver struct {
	seeds  []string
	port   uint16
	lookup LookupFunc
}

// New creates a resolver from cfg.
func New(cfg Config) *Resolver {
	lookup := cfg.Lookup
	if lookup == nil {
		if cfg.Server != "" {
			lookup = DNSLookup(cfg.Server)
		} else {
			lookup = SystemLookup
		}
	}
	return &Resolver{
		seeds:  append([]string(nil), cfg.Seeds...),
		port:   cfg.Port,
		lookup: lookup,
	}
}

// GetPeers queries every seed and returns the union of the resolved
// addresses. services is ignored since seeds cannot filter by capability.
// A seed that fails is skipped; an error is returned only when no seed
// could be resolved. timeout bounds the whole call when positive.
func (r *Resolver) GetPeers(ctx context.Context, services uint64, timeout time.Duration) ([]netip.AddrPort, error) {
	if len(r.seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		out       []netip.AddrPort
		seen      = make(map[netip.AddrPort]struct{})
		failures  int
		lastErr   error
		attempted int
	)
	for _, host := range r.seeds {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attempted++

		addrs, err := r.lookup(ctx, host)
		if err != nil {
			failures++
			lastErr = err
			klog.Seed.Warn().Err(err).Str("seed", host).Msg("DNS seed lookup failed")
			continue
		}

		for _, a := range addrs {
			a = a.Unmap().WithZone("")
			if !a.IsValid() || a.IsLoopback() || a.IsUnspecified() {
				continue
			}
			ap := netip.AddrPortFrom(a, r.port)
			if _, ok := seen[ap]; ok {
				continue
			}
			seen[ap] = struct{}{}
			out = append(out, ap)
		}
		klog.Seed.Debug().Str("seed", host).Int("addrs", len(addrs)).Msg("DNS seed resolved")
	}

	if failures == attempted {
		return nil, fmt.Errorf("%d dns seeds failed: %w", len(r.seeds), lastErr)
	}
	return out, nil
}

// Shutdown releases resources. The resolver holds none.
func (r *Resolver) Shutdown() {}

// Name describes the resolver for logs.
func (r *Resolver) Name() string {
	return fmt.Sprintf("DNS seeds %v", r.seeds)
}

// SystemLookup resolves host with the operating system resolver.
func SystemLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// DNSLookup returns a LookupFunc that sends A and AAAA queries for the host
// to server.
func DNSLookup(server string) LookupFunc {
	client := new(dns.Client)
	return func(ctx context.Context, host string) ([]netip.Addr, error) {
		var (
			out     []netip.Addr
			lastErr error
		)
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			msg := new(dns.Msg)
			msg.SetQuestion(dns.Fqdn(host), qtype)
			msg.RecursionDesired = true

			resp, _, err := client.ExchangeContext(ctx, msg, server)
			if err != nil {
				lastErr = err
				continue
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("%s %s: %s", host, dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
				continue
			}

			for _, rr := range resp.Answer {
				switch rec := rr.(type) {
				case *dns.A:
					if a, ok := netip.AddrFromSlice(rec.A); ok {
						out = append(out, a.Unmap())
					}
				case *dns.AAAA:
					if a, ok := netip.AddrFromSlice(rec.AAAA); ok {
						out = append(out, a)
					}
				}
			}
		}
		if len(out) == 0 && lastErr != nil {
			return nil, lastErr
		}
		return out, nil
	}
}
