package model

import "fmt"

// Tunnel maps a public domain to a local port reachable over the mesh.
type Tunnel struct {
	ID     ID     `json:"id"`
	Domain string `json:"domain"`
	Port   Port   `json:"port"`
	VPNIP  string `json:"vpn_ip,omitempty"`
}

// Label is the menu line for a tunnel.
func (t Tunnel) Label() string {
	return fmt.Sprintf("%s -> localhost:%s", t.Domain, t.Port)
}

// TunnelRequest is the body of POST /tunnel.
type TunnelRequest struct {
	Port   Port   `json:"port"`
	Domain string `json:"domain"`
	VPNIP  string `json:"vpn_ip"`
}
