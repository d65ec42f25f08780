package config

import (
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "LOCALCLOUD_"

// Menu labels shared by every workflow.
const (
	MainMenuItem        = "← Main Menu"
	NewEnvironmentItem  = "+ New Environment"
	NewTunnelItem       = "+ New Tunnel"
	NewServerItem       = "+ Server (where you host web services and apps; Ubuntu 22.04 LTS is required)"
	NewLocalMachineItem = "+ Local Machine (laptops, desktop computers; Linux or macOS is required)"
)

const (
	DefaultAPIURL       = "http://192.168.202.1:5005"
	DefaultIdentityDir  = "/etc/nebula"
	DefaultAgentDir     = "/usr/local/bin"
	DefaultAgentVersion = "v1.6.1"
	DefaultReleaseURL   = "https://github.com/slackhq/nebula/releases/download"
	DefaultRetryDelay   = 10 * time.Second
	DefaultAPITimeout   = 30 * time.Second
)

const (
	identityCAFile       = "ca.crt"
	identityConfigFile   = "config.yaml"
	identityHostCertFile = "host.crt"
	agentBinary          = "nebula"
	certToolBinary       = "nebula-cert"
)

// Config is built once at startup and passed by value to every component.
type Config struct {
	APIURL       string        `koanf:"api_url"`
	APIToken     string        `koanf:"api_token"`
	APITimeout   time.Duration `koanf:"api_timeout"`
	IdentityDir  string        `koanf:"identity_dir"`
	AgentDir     string        `koanf:"agent_dir"`
	AgentVersion string        `koanf:"agent_version"`
	ReleaseURL   string        `koanf:"release_url"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
	JournalPath  string        `koanf:"journal_path"`
	LogFile      string        `koanf:"log_file"`
	LogLevel     string        `koanf:"log_level"`
	AgentLog     string        `koanf:"agent_log"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	state := stateDir()
	return Config{
		APIURL:       DefaultAPIURL,
		APITimeout:   DefaultAPITimeout,
		IdentityDir:  DefaultIdentityDir,
		AgentDir:     DefaultAgentDir,
		AgentVersion: DefaultAgentVersion,
		ReleaseURL:   DefaultReleaseURL,
		RetryDelay:   DefaultRetryDelay,
		JournalPath:  filepath.Join(state, "journal.db"),
		LogFile:      filepath.Join(state, "localcloud.log"),
		LogLevel:     "info",
		AgentLog:     filepath.Join(state, "nebula.log"),
	}
}

// DefaultConfigPath is ~/.localcloud/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(stateDir(), "config.yaml")
}

func stateDir() string {
	if op, ok := SudoOperator(); ok {
		return op.StateDir()
	}
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return ".localcloud"
	}
	return filepath.Join(home, ".localcloud")
}

// CAPath is the mesh CA certificate inside the identity directory.
func (c Config) CAPath() string { return filepath.Join(c.IdentityDir, identityCAFile) }

// MeshConfigPath is the agent's YAML config inside the identity directory.
func (c Config) MeshConfigPath() string { return filepath.Join(c.IdentityDir, identityConfigFile) }

// HostCertPath is this host's certificate inside the identity directory.
func (c Config) HostCertPath() string { return filepath.Join(c.IdentityDir, identityHostCertFile) }

// AgentPath is the installed VPN agent binary.
func (c Config) AgentPath() string { return filepath.Join(c.AgentDir, agentBinary) }

// CertToolPath is the installed certificate helper binary.
func (c Config) CertToolPath() string { return filepath.Join(c.AgentDir, certToolBinary) }

// AgentName is the executable name searched for in the process list.
func (c Config) AgentName() string { return agentBinary }
