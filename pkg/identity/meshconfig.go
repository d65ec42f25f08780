package identity

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MeshConfig is the subset of the agent's config.yaml shown to the operator.
type MeshConfig struct {
	CA           string
	Cert         string
	Key          string
	Lighthouses  []string
	StaticHosts  map[string][]string
	TunDevice    string
	ListenPort   int
	AmLighthouse bool
}

type meshConfigFile struct {
	PKI struct {
		CA   string `yaml:"ca"`
		Cert string `yaml:"cert"`
		Key  string `yaml:"key"`
	} `yaml:"pki"`
	StaticHostMap map[string][]string `yaml:"static_host_map"`
	Lighthouse    struct {
		AmLighthouse bool     `yaml:"am_lighthouse"`
		Hosts        []string `yaml:"hosts"`
	} `yaml:"lighthouse"`
	Listen struct {
		Port int `yaml:"port"`
	} `yaml:"listen"`
	Tun struct {
		Dev string `yaml:"dev"`
	} `yaml:"tun"`
}

// MeshConfig parses the installed config.yaml.
func (p *Probe) MeshConfig() (MeshConfig, error) {
	b, err := os.ReadFile(p.configPath)
	if err != nil {
		return MeshConfig{}, fmt.Errorf("read mesh config: %w", err)
	}
	var f meshConfigFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return MeshConfig{}, fmt.Errorf("parse mesh config %s: %w", p.configPath, err)
	}
	hosts := append([]string(nil), f.Lighthouse.Hosts...)
	sort.Strings(hosts)
	return MeshConfig{
		CA:           f.PKI.CA,
		Cert:         f.PKI.Cert,
		Key:          f.PKI.Key,
		Lighthouses:  hosts,
		StaticHosts:  f.StaticHostMap,
		TunDevice:    f.Tun.Dev,
		ListenPort:   f.Listen.Port,
		AmLighthouse: f.Lighthouse.AmLighthouse,
	}, nil
}
