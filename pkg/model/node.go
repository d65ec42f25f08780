package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node types accepted by POST /vpn_node.
const (
	NodeTypeServer       = "server"
	NodeTypeLocalMachine = "local_machine"
)

// Node is a server or local machine provisioned on the mesh.
type Node struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
	// Type is a JSON-encoded list of capability tags, e.g. `["server","lighthouse"]`.
	Type string `json:"type"`
}

// Tags decodes Type. A value that is not a JSON list is returned as a single tag.
func (n Node) Tags() []string {
	raw := strings.TrimSpace(n.Type)
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return []string{raw}
	}
	return tags
}

// Label is the menu line for a node: "• name: ip : tag, tag".
func (n Node) Label() string {
	return fmt.Sprintf("• %s: %s : %s", n.Name, n.IP, strings.Join(n.Tags(), ", "))
}

// NodeRequest is the body of POST /vpn_node.
type NodeRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NodeInvite is returned by POST /vpn_node; ZipURL is the join bundle URL.
type NodeInvite struct {
	ZipURL string `json:"zip_url"`
}
