package pipeline

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidTarget is returned by Run when validation rejects the scan.
var ErrInvalidTarget = errors.New("invalid target")

// DefaultValidator requires consent and a well-formed locator. Internal
// addresses are refused unless AllowPrivate is set.
type DefaultValidator struct {
	AllowPrivate bool
}

func (v DefaultValidator) Validate(_ context.Context, target string, consent bool) Validation {
	target = strings.TrimSpace(target)
	if !consent {
		return Validation{Reason: "authorization consent is required to scan this target"}
	}
	if target == "" {
		return Validation{Reason: "target is empty"}
	}
	if strings.HasPrefix(target, "git@") {
		if !strings.Contains(target, ":") {
			return Validation{Reason: "malformed SSH repository locator"}
		}
		return Validation{Valid: true}
	}

	raw := target
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Validation{Reason: "target is not a valid URL: " + err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Validation{Reason: "unsupported scheme " + u.Scheme}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Validation{Reason: "target has no host"}
	}
	if !v.AllowPrivate && isInternalHost(host) {
		return Validation{Reason: "target " + host + " resolves to an internal address"}
	}
	return Validation{Valid: true}
}

func isInternalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
