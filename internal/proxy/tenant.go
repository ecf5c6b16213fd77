package proxy

import "github.com/Skelf-Research/checkstream-sub000/internal/config"

// unknownTenant is logged and recorded in place of an unrecognized
// X-Tenant-Id value (spec §6.3, "prevent enumeration").
const unknownTenant = "unknown tenant"

// resolveTenant returns raw unchanged if it appears in the snapshot's
// known_tenants list, else unknownTenant. An absent header resolves to
// unknownTenant as well.
func resolveTenant(snap *config.Snapshot, raw string) string {
	if raw == "" {
		return unknownTenant
	}
	for _, known := range snap.Catalog.Proxy.KnownTenants {
		if known == raw {
			return raw
		}
	}
	return unknownTenant
}
