package antispam

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DNSBL answers "is this domain listed" against a Spamhaus-style zone.
// Lookups fail open: resolver trouble never flags a message.
type DNSBL struct {
	zone     string
	resolver *net.Resolver
	timeout  time.Duration
}

func NewDNSBL(zone string) *DNSBL {
	return &DNSBL{
		zone:     zone,
		resolver: net.DefaultResolver,
		timeout:  3 * time.Second,
	}
}

// IsListed queries {domain}.{zone}. A positive answer means listed,
// NXDOMAIN means clean.
func (d *DNSBL) IsListed(ctx context.Context, domain string) bool {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	if domain == "" || d.zone == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	addrs, err := d.resolver.LookupHost(ctx, domain+"."+d.zone)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false
		}
		log.WithError(err).WithField("domain", domain).Debug("dnsbl lookup failed")
		return false
	}
	return len(addrs) > 0
}
