package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Server deployment status sent when assigning a server to an environment.
const StatusToDeploy = "to_deploy"

// Service is a deployed git repository with one or more environments.
type Service struct {
	ID           ID           `json:"id"`
	Name         string       `json:"name"`
	GitURL       string       `json:"git_url"`
	Environments Environments `json:"environments"`
}

// Environment is a named deployable variant of a service.
type Environment struct {
	Name    string             `json:"name"`
	Branch  string             `json:"branch"`
	Domain  string             `json:"domain"`
	Port    Port               `json:"port"`
	Servers []ServerAssignment `json:"servers"`
	ImageID string             `json:"image_id"`
}

// ServerAssignment binds an environment to a mesh node.
type ServerAssignment struct {
	ID     ID     `json:"id"`
	Status string `json:"status"`
}

// Environments is the canonical nested list. Older API versions returned the
// list JSON-encoded inside a string; that form is accepted on decode only.
type Environments []Environment

func (e *Environments) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*e = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var legacy string
		if err := json.Unmarshal(b, &legacy); err != nil {
			return err
		}
		if legacy == "" {
			*e = nil
			return nil
		}
		b = []byte(legacy)
	}
	var list []Environment
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("environments: %w", err)
	}
	*e = list
	return nil
}

// ServiceRequest is the body of POST /service.
type ServiceRequest struct {
	GitURL       string        `json:"git_url"`
	Environments []Environment `json:"environments"`
}

// Credentials are the deploy key and webhook a repository must be configured with.
type Credentials struct {
	SSHPubKey  string `json:"ssh_pub_key"`
	WebhookURL string `json:"webhook_url"`
}

// EnvironmentRequest is the body of POST /environment/{service_id}.
type EnvironmentRequest struct {
	Name    string             `json:"name"`
	Branch  string             `json:"branch"`
	Port    Port               `json:"port"`
	Domain  string             `json:"domain"`
	Servers []ServerAssignment `json:"servers"`
}
