// Package bootstrap brings a host from "nothing installed" to "agent running"
// before the interactive console starts.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"localcloud/pkg/agent"
	"localcloud/pkg/bundle"
	"localcloud/pkg/model"
)

var (
	// ErrElevationRequired is returned when joining without root privileges.
	ErrElevationRequired = errors.New("joining the VPN requires root privileges, re-run with sudo")
	// ErrAwaitingInvite is returned when there is neither an invitation nor an installed identity.
	ErrAwaitingInvite = errors.New("this host has not joined a LocalCloud VPN yet")
)

// State is a bootstrap phase.
type State int

const (
	AwaitingInvite State = iota
	Fetching
	CheckingAgent
	Launching
	MainMenu
)

func (s State) String() string {
	switch s {
	case AwaitingInvite:
		return "awaiting_invite"
	case Fetching:
		return "fetching"
	case CheckingAgent:
		return "checking_agent"
	case Launching:
		return "launching"
	case MainMenu:
		return "main_menu"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Probe interface {
	HasIdentity() bool
}

type Fetcher interface {
	FetchAndInstall(ctx context.Context, inviteURL string) error
}

type Supervisor interface {
	IsRunning(ctx context.Context) bool
	EnsureStarted(ctx context.Context, secret agent.SecretFunc) error
}

type Recorder interface {
	Record(ctx context.Context, kind, subject, detail string)
}

// Controller wires the collaborators of one bootstrap run. Journal, Stdout,
// Stderr and Logger are optional.
type Controller struct {
	Probe      Probe
	Fetcher    Fetcher
	Supervisor Supervisor
	Journal    Recorder
	Secret     agent.SecretFunc
	IsElevated func() bool
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     hclog.Logger
}

// Run drives the bootstrap state machine and returns the state it stopped in.
// MainMenu with a nil error means the console may start.
func (c *Controller) Run(ctx context.Context, inviteURL string) (State, error) {
	c.defaults()
	state := AwaitingInvite

	if inviteURL != "" {
		invite := bundle.RedactInviteURL(inviteURL)
		if !c.IsElevated() {
			c.Logger.Warn("join refused without root", "invite", invite)
			return state, ErrElevationRequired
		}
		state = c.move(state, Fetching)
		fmt.Fprintln(c.Stdout, "Joining the LocalCloud VPN...")
		if err := c.Fetcher.FetchAndInstall(ctx, inviteURL); err != nil {
			c.record(ctx, model.EventJoinFailed, invite, strings.ReplaceAll(err.Error(), inviteURL, invite))
			return state, err
		}
		c.record(ctx, model.EventJoin, invite, "")
	} else if !c.Probe.HasIdentity() {
		return state, ErrAwaitingInvite
	}

	state = c.move(state, CheckingAgent)
	if c.Supervisor.IsRunning(ctx) {
		return c.move(state, MainMenu), nil
	}

	state = c.move(state, Launching)
	fmt.Fprintln(c.Stdout, "Starting the VPN agent...")
	if err := c.Supervisor.EnsureStarted(ctx, c.Secret); err != nil {
		c.record(ctx, model.EventAgentLaunchFailed, "nebula", err.Error())
		fmt.Fprintf(c.Stderr, "Error: %v\n", err)
	} else {
		c.record(ctx, model.EventAgentLaunch, "nebula", "")
	}
	return c.move(state, MainMenu), nil
}

func (c *Controller) move(from, to State) State {
	c.Logger.Info("bootstrap transition", "from", from, "to", to)
	return to
}

func (c *Controller) record(ctx context.Context, kind, subject, detail string) {
	if c.Journal != nil {
		c.Journal.Record(ctx, kind, subject, detail)
	}
}

func (c *Controller) defaults() {
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.Stdout == nil {
		c.Stdout = io.Discard
	}
	if c.Stderr == nil {
		c.Stderr = io.Discard
	}
	if c.IsElevated == nil {
		c.IsElevated = agent.IsElevated
	}
}
