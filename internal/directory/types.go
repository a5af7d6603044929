package directory

import "strings"

// Listing is a single barbershop returned by the directory.
type Listing struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// tenantRecord mirrors the upstream /api/tenants/by-location payload.
type tenantRecord struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Neighborhood string `json:"neighborhood"`
	Address      string `json:"address"`
	City         string `json:"city,omitempty"`
	District     string `json:"district,omitempty"`
}

// listing resolves the display address from neighborhood, then address.
func (r tenantRecord) listing() Listing {
	addr := strings.TrimSpace(r.Neighborhood)
	if addr == "" {
		addr = strings.TrimSpace(r.Address)
	}
	return Listing{ID: r.ID, Name: r.Name, Address: addr}
}
