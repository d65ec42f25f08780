package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"localcloud/pkg/config"
	"localcloud/pkg/menu"
	"localcloud/pkg/model"
)

const joinBanner = "=^..^=   =^..^=   =^..^=    =^..^=    =^..^=    =^..^=    =^..^="

func (c *Console) nodes(ctx context.Context) (menu.Screen, error) {
	list, err := c.api.Nodes(ctx)
	if err != nil {
		return c.failed(ctx, err, nil)
	}
	labels := make([]string, len(list))
	for i, n := range list {
		labels[i] = n.Label()
	}
	choices, first := withRecords(actions(config.NewServerItem, config.NewLocalMachineItem), labels)
	sel, err := c.nav.Render(ctx, "Select server/local machine or add a new one", choices, true)
	if err != nil || sel.Back {
		return nil, err
	}
	switch {
	case sel.Index == 0:
		return c.addNode(model.NodeTypeServer), nil
	case sel.Index == 1:
		return c.addNode(model.NodeTypeLocalMachine), nil
	}
	return c.nodeMenu(list[sel.Index-first]), nil
}

func (c *Console) addNode(nodeType string) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		answers, err := c.nav.CollectForm(ctx, []menu.Field{{
			Name:     "name",
			Prompt:   "Enter name (alphabetic characters (A-Z), numeric characters (0-9), the minus sign (-)):",
			Validate: validHostname,
		}})
		if err != nil {
			return nil, err
		}
		name := answers["name"]
		invite, err := c.api.CreateNode(ctx, model.NodeRequest{Name: name, Type: nodeType})
		if err != nil {
			return c.failed(ctx, err, c.nodes)
		}
		c.record(ctx, model.EventCreate, nodeType, name)
		c.nav.Printf("%s", joinInstructions(nodeType, invite.ZipURL))

		if err := c.pause(ctx, time.Second); err != nil {
			return nil, err
		}
		return c.nodes, nil
	}
}

func joinInstructions(nodeType, zipURL string) string {
	var b strings.Builder
	b.WriteString("\n" + joinBanner + "\n\n")
	if nodeType == model.NodeTypeLocalMachine {
		b.WriteString("Follow the steps below to connect a new local machine:\n\n")
		b.WriteString("  - install LocalCloud CLI on your local machine. LocalCloud CLI works on Ubuntu and macOS, admin permissions are required to install. Run in Terminal/Console:\n\n")
		fmt.Fprintf(&b, "        Linux: curl https://localcloud.dev/setup/linux | sh -s join %s\n", zipURL)
		fmt.Fprintf(&b, "        MacOS: curl https://localcloud.dev/setup/mac | sh -s join %s\n\n", zipURL)
		b.WriteString("  - to start LocalCloud CLI next time:\n\n        localcloud\n\n")
	} else {
		b.WriteString("Follow the steps below to connect a new server:\n\n")
		b.WriteString("  - SSH into a server with \"fresh\" Ubuntu 22.04 and run a command:\n\n")
		fmt.Fprintf(&b, "        curl https://localcloud.dev/install | sh -s join %s\n\n", zipURL)
	}
	b.WriteString("  - more information can be found at localcloud.dev/docs\n\n")
	return b.String()
}

func (c *Console) nodeMenu(node model.Node) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		sel, err := c.nav.Render(ctx, fmt.Sprintf("Selected: %s (%s)", node.Name, node.IP), actions("View Details"), true)
		if err != nil || sel.Back {
			return nil, err
		}
		c.nav.Printf("\nName: %s\nID: %s\nVPN IP: %s\nTags: %s\n\n", node.Name, node.ID, node.IP, strings.Join(node.Tags(), ", "))
		return c.nodeMenu(node), nil
	}
}
