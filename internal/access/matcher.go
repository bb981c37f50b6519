package access

import (
	"log/slog"
	"net/netip"
	"strings"
)

// LocalhostIP is the canonical form loopback candidates are normalized to.
const LocalhostIP = "127.0.0.1"

// Allowlist is the immutable set of IP literals and CIDR ranges permitted to
// reach protected routes. An empty Allowlist is open mode.
type Allowlist struct {
	entries []string
}

// ParseAllowlist splits a comma-separated list of entries, trimming blanks.
// Entries are kept verbatim; malformed ones are reported when evaluated.
func ParseAllowlist(raw string) Allowlist {
	var entries []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			entries = append(entries, part)
		}
	}
	return Allowlist{entries: entries}
}

// NewAllowlist builds an Allowlist from already split entries.
func NewAllowlist(entries ...string) Allowlist {
	return ParseAllowlist(strings.Join(entries, ","))
}

// Len returns the number of configured entries.
func (a Allowlist) Len() int {
	return len(a.entries)
}

// Empty reports whether no entries are configured (open mode).
func (a Allowlist) Empty() bool {
	return len(a.entries) == 0
}

// Entries returns a copy of the configured entries.
func (a Allowlist) Entries() []string {
	return append([]string(nil), a.entries...)
}

// Contains reports whether entry is literally present in the list.
func (a Allowlist) Contains(entry string) bool {
	for _, e := range a.entries {
		if e == entry {
			return true
		}
	}
	return false
}

// IsAllowed reports whether candidate is permitted by the allowlist.
// An empty allowlist allows every candidate.
func (a Allowlist) IsAllowed(candidate string, logger *slog.Logger) bool {
	if a.Empty() {
		logger.Warn("no allowed IPs configured, allowing all addresses", "client_ip", candidate)
		return true
	}

	for _, entry := range a.entries {
		ok, err := Matches(candidate, entry)
		if err != nil {
			logger.Warn("skipping invalid allowlist entry", "entry", entry, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Matches reports whether candidate matches a single allowlist entry.
//
// Entries containing "/" are CIDR networks; host bits are masked so
// "10.1.2.3/8" behaves like "10.0.0.0/8". Other entries are compared as
// literals after normalizing "::1" and "localhost" candidates to 127.0.0.1.
// A non-nil error means the entry itself is malformed.
func Matches(candidate, entry string) (bool, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return false, err
		}
		addr, err := netip.ParseAddr(normalize(candidate))
		if err != nil {
			return false, nil
		}
		return prefix.Masked().Contains(addr.Unmap()) || prefix.Masked().Contains(addr), nil
	}

	if entry != "localhost" {
		if _, err := netip.ParseAddr(entry); err != nil {
			return false, err
		}
	}
	return normalize(candidate) == normalize(entry), nil
}

// normalize maps loopback spellings onto LocalhostIP.
func normalize(ip string) string {
	switch ip {
	case "::1", "localhost":
		return LocalhostIP
	}
	return ip
}
