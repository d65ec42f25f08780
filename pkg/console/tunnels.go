package console

import (
	"context"
	"fmt"

	"localcloud/pkg/config"
	"localcloud/pkg/menu"
	"localcloud/pkg/model"
)

func (c *Console) tunnels(ctx context.Context) (menu.Screen, error) {
	list, err := c.api.Tunnels(ctx)
	if err != nil {
		return c.failed(ctx, err, nil)
	}
	labels := make([]string, len(list))
	for i, t := range list {
		labels[i] = t.Label()
	}
	choices, first := withRecords(actions(config.NewTunnelItem), labels)
	sel, err := c.nav.Render(ctx, "Create a new tunnel or select a tunnel from the list below to edit/delete", choices, true)
	if err != nil || sel.Back {
		return nil, err
	}
	if sel.Index < first {
		return c.newTunnel, nil
	}
	return c.tunnelMenu(list[sel.Index-first]), nil
}

func (c *Console) newTunnel(ctx context.Context) (menu.Screen, error) {
	vpnIP, err := c.probe.HostVPNIP(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.nav.Printf("%s\n", errorStyle.Render(fmt.Sprintf("Cannot load host VPN IP address. Error: %v", err)))
		return nil, nil
	}

	answers, err := c.nav.CollectForm(ctx, []menu.Field{
		{Name: "port", Prompt: "Enter local port:", Validate: validPort},
		{Name: "domain", Prompt: "Enter a domain (example: project.domain.com, you should add A record to DNS before deploying - check localcloud.dev/docs):", Validate: validDomain},
	})
	if err != nil {
		return nil, err
	}
	req := model.TunnelRequest{Port: model.Port(answers["port"]), Domain: answers["domain"], VPNIP: vpnIP}
	if err := c.api.CreateTunnel(ctx, req); err != nil {
		return c.failed(ctx, err, c.tunnels)
	}
	c.record(ctx, model.EventCreate, "tunnel", req.Domain)
	c.nav.Printf("%s\n", okStyle.Render(fmt.Sprintf("A tunnel for localhost:%s has been created and will be accessible at https://%s shortly.", req.Port, req.Domain)))
	return c.tunnels, nil
}

func (c *Console) tunnelMenu(t model.Tunnel) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		title := fmt.Sprintf("What do you want to do with a tunnel for localhost:%s, a public domain: %s", t.Port, t.Domain)
		sel, err := c.nav.Render(ctx, title, actions("View Details", "Delete tunnel"), true)
		if err != nil || sel.Back {
			return nil, err
		}
		if sel.Index == 0 {
			c.nav.Printf("\nTunnel: %s\nID: %s\nLocal port: %s\nVPN IP: %s\n\n", t.Domain, t.ID, t.Port, t.VPNIP)
			return c.tunnelMenu(t), nil
		}

		ok, err := c.nav.ConfirmDelete(ctx, fmt.Sprintf("Do you really want to delete a tunnel for localhost:%s?", t.Port))
		if err != nil {
			return nil, err
		}
		if !ok {
			return c.tunnelMenu(t), nil
		}
		if err := c.api.DeleteTunnel(ctx, t.ID); err != nil {
			return c.failed(ctx, err, c.tunnels)
		}
		c.record(ctx, model.EventDelete, "tunnel", t.ID.String())
		c.nav.Printf("%s\n", okStyle.Render(fmt.Sprintf("The tunnel for localhost:%s has been deleted", t.Port)))
		return nil, nil
	}
}
