package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"localcloud/pkg/agent"
	"localcloud/pkg/api"
	"localcloud/pkg/auth"
	"localcloud/pkg/bootstrap"
	"localcloud/pkg/bundle"
	"localcloud/pkg/config"
	"localcloud/pkg/console"
	"localcloud/pkg/identity"
	"localcloud/pkg/journal"
	"localcloud/pkg/logging"
	"localcloud/pkg/menu"
	"localcloud/pkg/prompt"
	"localcloud/pkg/version"
)

func newRootCmd(stdin *os.File, stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		inviteURL  string
	)
	root := &cobra.Command{
		Use:           "localcloud",
		Short:         "Join a LocalCloud VPN and manage services, servers and tunnels",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), configPath, inviteURL, stdin, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.localcloud/config.yaml)")
	root.Flags().StringVarP(&inviteURL, "join", "j", "", "join the VPN with the invitation URL of a server or local machine")

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the VPN agent if needed and open the menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), configPath, "", stdin, stdout, stderr)
		},
	}
	root.AddCommand(start, newStatusCmd(&configPath, stdout), newHistoryCmd(&configPath, stdout), newVersionCmd(stdout))
	return root
}

func newStatusCmd(configPath *string, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installed VPN identity and whether the agent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			probe := identity.NewProbe(cfg)
			sup := agent.NewSupervisor(cfg, logging.Discard())
			return printStatus(cmd.Context(), stdout, cfg, probe, sup)
		},
	}
}

type runningChecker interface {
	IsRunning(ctx context.Context) bool
}

func printStatus(ctx context.Context, stdout io.Writer, cfg config.Config, probe *identity.Probe, sup runningChecker) error {
	if !probe.HasIdentity() {
		fmt.Fprintf(stdout, "Identity: not installed in %s\n", cfg.IdentityDir)
		return bootstrap.ErrAwaitingInvite
	}
	mc, err := probe.MeshConfig()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Identity:\t%s\n", cfg.IdentityDir)
	fmt.Fprintf(w, "Certificate:\t%s\n", mc.Cert)
	fmt.Fprintf(w, "Lighthouses:\t%s\n", strings.Join(mc.Lighthouses, ", "))
	if mc.TunDevice != "" {
		fmt.Fprintf(w, "Tun device:\t%s\n", mc.TunDevice)
	}
	if mc.ListenPort != 0 {
		fmt.Fprintf(w, "Listen port:\t%d\n", mc.ListenPort)
	}
	agentState := "stopped"
	if sup.IsRunning(ctx) {
		agentState = "running"
	}
	fmt.Fprintf(w, "Agent:\t%s (%s)\n", agentState, cfg.AgentPath())
	return w.Flush()
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "localcloud %s\n", version.String())
		},
	}
}

func newHistoryCmd(configPath *string, stdout io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show operations recently run from this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			jr, err := journal.Open(cmd.Context(), cfg.JournalPath, logging.Discard())
			if err != nil {
				return err
			}
			defer jr.Close()
			defer handOverState(logging.Discard())
			events, err := jr.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(stdout, "No operations recorded yet.")
				return nil
			}
			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tSUBJECT\tDETAIL")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.Timestamp.Local().Format(time.DateTime), ev.Kind, ev.Subject, ev.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}

// runConsole bootstraps the host and then runs the interactive menu.
func runConsole(ctx context.Context, configPath, inviteURL string, stdin *os.File, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, closer := logging.New(cfg)
	defer closer.Close()
	logger.Info("starting", "version", version.String(), "api", cfg.APIURL)

	warnExpiredToken(cfg.APIToken, time.Now(), stderr, logger)

	jr, err := journal.Open(ctx, cfg.JournalPath, logger)
	if err != nil {
		logger.Warn("journal unavailable, operations will not be recorded", "error", err)
		jr = nil
	}
	defer jr.Close()
	defer handOverState(logger)

	term := prompt.NewTerminal(stdin, stdout)
	probe := identity.NewProbe(cfg)
	ctl := &bootstrap.Controller{
		Probe:      probe,
		Fetcher:    bundle.NewFetcher(cfg, logger),
		Supervisor: agent.NewSupervisor(cfg, logger),
		Journal:    jr,
		Secret: func(ctx context.Context) (string, error) {
			return term.Secret(ctx, "Password (required to start the VPN agent with sudo):")
		},
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	}
	if _, err := ctl.Run(ctx, inviteURL); err != nil {
		return err
	}

	nav := menu.New(term, stdout, api.Message, logger)
	return console.New(api.New(cfg, logger), nav, probe, jr, logger).Run(ctx)
}

// handOverState returns the state directory to the operator behind sudo so
// root runs do not leave files the next unprivileged run cannot open.
func handOverState(logger hclog.Logger) {
	op, ok := config.SudoOperator()
	if !ok {
		return
	}
	if err := config.HandOver(op); err != nil {
		logger.Warn("could not hand state dir back to operator", "user", op.Name, "dir", op.StateDir(), "error", err)
	}
}

func warnExpiredToken(token string, now time.Time, stderr io.Writer, logger hclog.Logger) {
	if token == "" {
		return
	}
	claims, err := auth.Inspect(token)
	if err != nil {
		logger.Debug("api token is not a JWT", "error", err)
		return
	}
	if claims.Expired(now) {
		logger.Warn("api token expired", "expires_at", claims.ExpiresAt)
		fmt.Fprintf(stderr, "Warning: the configured API token expired at %s\n", claims.ExpiresAt.Local().Format(time.DateTime))
	}
}
