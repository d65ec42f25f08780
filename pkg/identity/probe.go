// Package identity inspects the mesh identity installed on this host.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"localcloud/pkg/config"
)

// OutputFunc runs a command and returns its stdout.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Probe checks the fixed identity directory. It never mutates it.
type Probe struct {
	caPath       string
	configPath   string
	hostCertPath string
	certTool     string
	output       OutputFunc
}

// NewProbe builds a Probe for cfg's identity and agent directories.
func NewProbe(cfg config.Config) *Probe {
	return &Probe{
		caPath:       cfg.CAPath(),
		configPath:   cfg.MeshConfigPath(),
		hostCertPath: cfg.HostCertPath(),
		certTool:     cfg.CertToolPath(),
		output:       commandOutput,
	}
}

// WithOutput replaces how the certificate helper is executed.
func (p *Probe) WithOutput(fn OutputFunc) *Probe {
	p.output = fn
	return p
}

// HasIdentity reports whether both the CA certificate and the mesh config exist.
func (p *Probe) HasIdentity() bool {
	return exists(p.caPath) && exists(p.configPath)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// HostVPNIP asks the certificate helper for this host's mesh address and
// strips the prefix length, e.g. "192.168.202.9/24" -> "192.168.202.9".
func (p *Probe) HostVPNIP(ctx context.Context) (string, error) {
	out, err := p.output(ctx, p.certTool, "print", "-json", "-path", p.hostCertPath)
	if err != nil {
		return "", fmt.Errorf("print host certificate: %w", err)
	}
	var cert struct {
		Details struct {
			IPs []string `json:"ips"`
		} `json:"details"`
	}
	if err := json.Unmarshal(out, &cert); err != nil {
		return "", fmt.Errorf("decode host certificate: %w", err)
	}
	if len(cert.Details.IPs) == 0 {
		return "", errors.New("host certificate carries no mesh address")
	}
	ip := cert.Details.IPs[0]
	if i := strings.Index(ip, "/"); i > 0 {
		ip = ip[:i]
	}
	return ip, nil
}

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %v failed: %w stderr=%s", name, args, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s %v failed: %w", name, args, err)
	}
	return out, nil
}
