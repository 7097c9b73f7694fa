// Package identity derives the quota identity for a request.
//
// Two disjoint namespaces exist: authenticated callers are collapsed into
// one shared "apikey" identity (this is a shared-secret free tier, not
// per-user auth), anonymous callers are tracked per client IP.
package identity

import (
	"net"
	"net/http"
	"strings"
)

// Namespace is one of the two disjoint quota-key spaces.
type Namespace string

const (
	NamespaceAPIKey Namespace = "apikey"
	NamespaceIP     Namespace = "ip"
)

// Identity tags the value a quota bucket is keyed on. It lives for one
// request and is never persisted.
type Identity struct {
	Namespace Namespace
	Value     string
}

// ForAPIKey returns the shared identity all holders of the free-tier key
// map onto.
func ForAPIKey(keyName string) Identity {
	return Identity{Namespace: NamespaceAPIKey, Value: keyName}
}

// ForIP resolves the client address for anonymous quota tracking.
// X-Forwarded-For wins over the transport peer; this trusts the reverse
// proxy in front of the service and is not a spoofing defense.
func ForIP(r *http.Request) Identity {
	return Identity{Namespace: NamespaceIP, Value: ClientIP(r)}
}

// ClientIP extracts the client address: first entry of X-Forwarded-For if
// present, else the transport peer address, else "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
