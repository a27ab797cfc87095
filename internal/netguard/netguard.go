// Package netguard restricts outbound connections to public addresses so
// caller-supplied URLs cannot reach loopback, private or link-local hosts.
package netguard

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

var ErrDisallowedAddress = errors.New("destination address not allowed")

// carrier-grade NAT, not covered by netip's IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Allowed reports whether ip is a publicly routable unicast address.
func Allowed(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast():
		return false
	}
	return !sharedAddressSpace.Contains(ip)
}

// control runs after name resolution, so redirects and rebinding hosts are
// checked against the address actually dialed.
func control(_, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDisallowedAddress, address)
	}
	if !Allowed(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", ErrDisallowedAddress, addrPort.Addr())
	}
	return nil
}

// Transport returns a clone of the default transport whose dialer refuses
// non-public addresses. Environment proxies are ignored.
func Transport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   control,
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = dialer.DialContext
	return t
}

// RoundTripper returns Transport, or the default transport when private
// destinations are allowed.
func RoundTripper(allowPrivate bool) http.RoundTripper {
	if allowPrivate {
		return http.DefaultTransport
	}
	return Transport()
}
