// Package console implements the interactive LocalCloud menus: services,
// environments, servers and localhost tunnels.
package console

import (
	"context"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-hclog"

	"localcloud/pkg/api"
	"localcloud/pkg/menu"
	"localcloud/pkg/model"
)

// API is the subset of the LocalCloud API used by the console.
type API interface {
	Credentials(ctx context.Context) (model.Credentials, error)
	Nodes(ctx context.Context) ([]model.Node, error)
	CreateNode(ctx context.Context, req model.NodeRequest) (model.NodeInvite, error)
	Services(ctx context.Context) ([]model.Service, error)
	Service(ctx context.Context, id model.ID) (model.Service, error)
	CreateService(ctx context.Context, req model.ServiceRequest) error
	DeleteService(ctx context.Context, id model.ID) error
	CreateEnvironment(ctx context.Context, serviceID model.ID, req model.EnvironmentRequest) error
	DeleteEnvironment(ctx context.Context, serviceID model.ID, name string) error
	Tunnels(ctx context.Context) ([]model.Tunnel, error)
	CreateTunnel(ctx context.Context, req model.TunnelRequest) error
	DeleteTunnel(ctx context.Context, id model.ID) error
}

// AddressProbe reports this host's mesh address.
type AddressProbe interface {
	HostVPNIP(ctx context.Context) (string, error)
}

type Recorder interface {
	Record(ctx context.Context, kind, subject, detail string)
}

var (
	highlight  = lipgloss.NewStyle().Foreground(lipgloss.Color("#127475"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

const mainTitle = "What do you want to do? (CTRL + C to close this app)"

var mainItems = []string{
	"New Service/App",
	"Services/Apps",
	"Servers/Local Machines",
	"Localhost Tunnels",
}

// Console is the post-bootstrap menu tree.
type Console struct {
	api     API
	nav     *menu.Navigator
	probe   AddressProbe
	journal Recorder
	pause   func(ctx context.Context, d time.Duration) error
	logger  hclog.Logger
}

// New builds a Console. journal may be nil.
func New(client API, nav *menu.Navigator, probe AddressProbe, journal Recorder, logger hclog.Logger) *Console {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Console{
		api:     client,
		nav:     nav,
		probe:   probe,
		journal: journal,
		pause:   sleep,
		logger:  logger.Named("console"),
	}
}

// WithPause replaces the wait after printing join instructions.
func (c *Console) WithPause(fn func(ctx context.Context, d time.Duration) error) *Console {
	c.pause = fn
	return c
}

// Run shows the main menu until the operator leaves it.
func (c *Console) Run(ctx context.Context) error {
	return c.nav.Run(ctx, c.mainMenu)
}

func (c *Console) mainMenu(ctx context.Context) (menu.Screen, error) {
	choices := make([]menu.Choice, len(mainItems))
	for i, l := range mainItems {
		choices[i] = menu.Choice{Kind: menu.Action, Label: l}
	}
	sel, err := c.nav.Render(ctx, mainTitle, choices, false)
	if err != nil {
		return nil, err
	}
	switch sel.Index {
	case 0:
		return c.newService, nil
	case 1:
		return c.services, nil
	case 2:
		return c.nodes, nil
	default:
		return c.tunnels, nil
	}
}

// failed prints a remote error and continues with next. Cancellation is
// passed through unchanged.
func (c *Console) failed(ctx context.Context, err error, next menu.Screen) (menu.Screen, error) {
	if ctx.Err() != nil {
		return nil, err
	}
	c.logger.Warn("request failed", "error", err)
	c.nav.Printf("%s\n", errorStyle.Render(api.Message(err)))
	return next, nil
}

func (c *Console) record(ctx context.Context, kind, subject, detail string) {
	if c.journal != nil {
		c.journal.Record(ctx, kind, subject, detail)
	}
}

// withRecords appends one record per label after lead, separated when both
// are present. It returns the index of the first record.
func withRecords(lead []menu.Choice, labels []string) ([]menu.Choice, int) {
	choices := append([]menu.Choice(nil), lead...)
	if len(lead) > 0 && len(labels) > 0 {
		choices = append(choices, menu.Choice{Kind: menu.Separator})
	}
	first := len(choices)
	for _, l := range labels {
		choices = append(choices, menu.Choice{Kind: menu.Record, Label: l})
	}
	return choices, first
}

func actions(labels ...string) []menu.Choice {
	out := make([]menu.Choice, len(labels))
	for i, l := range labels {
		out[i] = menu.Choice{Kind: menu.Action, Label: l}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
