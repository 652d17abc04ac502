package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
)

// tenantHeader carries the tenant alias when a caller addresses a tenant
// explicitly instead of (or in addition to) the request hostname.
const tenantHeader = "X-Tenant"

// tenantInfoFromRequest extracts both tenant identifiers of a request:
// the optional alias header and the effective hostname.
func tenantInfoFromRequest(r *http.Request) types.TenantInfo {
	return types.TenantInfo{
		Header:   strings.TrimSpace(r.Header.Get(tenantHeader)),
		Hostname: effectiveHost(r),
	}
}

func effectiveHost(r *http.Request) string {
	if os.Getenv("TRUST_PROXY") == "1" {
		if h := forwardedHost(r); h != "" {
			return normalizeHostname(h)
		}
	}
	return normalizeHostname(r.Host)
}

func forwardedHost(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("X-Forwarded-Host"))
	if raw == "" {
		return ""
	}
	first, _, ok := strings.Cut(raw, ",")
	if ok {
		raw = first
	}
	return strings.TrimSpace(raw)
}

func normalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	host = hostWithoutPort(host)
	return strings.ToLower(strings.TrimSpace(host))
}

func hostWithoutPort(host string) string {
	if h, _, ok := strings.Cut(host, ":"); ok {
		return h
	}
	return host
}
