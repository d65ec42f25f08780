package console

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"localcloud/pkg/menu"
	"localcloud/pkg/model"
)

const gitURLHint = `
Enter Git clone URL. Use https:// for public repositories and git@ for private repositories.
Examples:
 - public repository: https://github.com/ladjs/superagent.git
 - private repository: git@bitbucket.org:user/service-node.git

`

const domainPrompt = "Enter a domain (example: project.domain.com, you should add A record to DNS before deploying - check localcloud.dev/docs/custom_domains):"

func (c *Console) newService(ctx context.Context) (menu.Screen, error) {
	creds, err := c.api.Credentials(ctx)
	if err != nil {
		return c.failed(ctx, err, nil)
	}

	c.nav.Printf("%s", gitURLHint)
	answers, err := c.nav.CollectForm(ctx, []menu.Field{
		{Name: "git_url", Prompt: "Git clone URL:", Validate: validGitURL},
		{Name: "branch", Prompt: "Enter a branch name (for example: master or main):", Validate: required("Branch")},
		{Name: "port", Prompt: "Enter a port your service listens to (for example: 4008):", Validate: validPort},
		{Name: "domain", Prompt: domainPrompt, Validate: validDomain},
	})
	if err != nil {
		return nil, err
	}

	server, ok, err := c.pickServer(ctx, "Select a server where to deploy a service/app")
	if err != nil || !ok {
		return nil, err
	}

	c.nav.Printf("%s", deployHint(creds))
	added, err := c.nav.Confirm(ctx, "Have you added a public key and webhook URL above?", true)
	if err != nil {
		return nil, err
	}
	if !added {
		c.nav.Printf("Nothing was created. Add the key and webhook, then create the service again.\n")
		return nil, nil
	}

	branch, domain := answers["branch"], answers["domain"]
	req := model.ServiceRequest{
		GitURL: answers["git_url"],
		Environments: []model.Environment{{
			Name:    branch,
			Branch:  branch,
			Domain:  domain,
			Port:    model.Port(answers["port"]),
			Servers: []model.ServerAssignment{{ID: server.ID, Status: model.StatusToDeploy}},
			ImageID: "",
		}},
	}
	if err := c.api.CreateService(ctx, req); err != nil {
		return c.failed(ctx, err, nil)
	}
	c.record(ctx, model.EventCreate, "service", domain)
	c.nav.Printf("\nThe service should be available at %s within 30 seconds. Each time you push to %s the service will be updated automatically.\n\n", domain, branch)
	return nil, nil
}

func deployHint(creds model.Credentials) string {
	var b strings.Builder
	b.WriteString("\nTo deploy a new service/app, add a public key of the server and webhook URL listed below to the Git repository Access Keys (Bitbucket) / Deploy Keys (GitHub) and Webhooks. Check docs at localcloud.dev/docs if you don't know how to do this.\n\n")
	b.WriteString("Public Key:\n\n    " + highlight.Render(creds.SSHPubKey) + "\n\n")
	if fp := keyFingerprint(creds.SSHPubKey); fp != "" {
		b.WriteString("Fingerprint: " + fp + "\n\n")
	}
	b.WriteString("Webhook URL:\n\n    " + highlight.Render(creds.WebhookURL) + "\n\n")
	return b.String()
}

// keyFingerprint returns the SHA256 fingerprint of an authorized_keys line,
// or "" when it does not parse.
func keyFingerprint(key string) string {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key))
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

// pickServer lets the operator choose a node. ok is false when there is
// nothing to choose or the operator went back.
func (c *Console) pickServer(ctx context.Context, title string) (model.Node, bool, error) {
	nodes, err := c.api.Nodes(ctx)
	if err != nil {
		_, err = c.failed(ctx, err, nil)
		return model.Node{}, false, err
	}
	if len(nodes) == 0 {
		c.nav.Printf("There are no servers yet. Add one under Servers/Local Machines first.\n")
		return model.Node{}, false, nil
	}
	labels := make([]string, len(nodes))
	for i, n := range nodes {
		labels[i] = n.Label()
	}
	choices, first := withRecords(nil, labels)
	sel, err := c.nav.Render(ctx, title, choices, true)
	if err != nil || sel.Back {
		return model.Node{}, false, err
	}
	return nodes[sel.Index-first], true, nil
}

func (c *Console) services(ctx context.Context) (menu.Screen, error) {
	list, err := c.api.Services(ctx)
	if err != nil {
		return c.failed(ctx, err, nil)
	}
	labels := make([]string, len(list))
	for i, s := range list {
		labels[i] = s.Name
	}
	choices, first := withRecords(nil, labels)
	sel, err := c.nav.Render(ctx, "Select service", choices, true)
	if err != nil || sel.Back {
		return nil, err
	}
	return c.serviceMenu(list[sel.Index-first]), nil
}

func (c *Console) serviceMenu(svc model.Service) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		title := fmt.Sprintf("Selected service: %s\n Git: %s\n Environments: %d", svc.Name, svc.GitURL, len(svc.Environments))
		sel, err := c.nav.Render(ctx, title, actions("View Details", "View Environments", "Delete Service"), true)
		if err != nil || sel.Back {
			return nil, err
		}
		switch sel.Index {
		case 0:
			c.nav.Printf("%s", serviceDetails(svc))
			return c.serviceMenu(svc), nil
		case 1:
			return c.environments(svc), nil
		default:
			return c.deleteService(svc), nil
		}
	}
}

func serviceDetails(svc model.Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nService: %s\nID: %s\nGit: %s\n", svc.Name, svc.ID, svc.GitURL)
	for _, e := range svc.Environments {
		fmt.Fprintf(&b, " - %s: https://%s (branch %s, port %s)\n", e.Name, e.Domain, e.Branch, e.Port)
	}
	b.WriteString("\n")
	return b.String()
}

func (c *Console) deleteService(svc model.Service) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		ok, err := c.nav.ConfirmDelete(ctx, fmt.Sprintf("Do you really want to delete %q service?", svc.Name))
		if err != nil {
			return nil, err
		}
		if !ok {
			return c.serviceMenu(svc), nil
		}
		if err := c.api.DeleteService(ctx, svc.ID); err != nil {
			return c.failed(ctx, err, c.services)
		}
		c.record(ctx, model.EventDelete, "service", svc.ID.String())
		c.nav.Printf("%s\n", okStyle.Render(fmt.Sprintf("Service %s has been deleted", svc.Name)))
		return nil, nil
	}
}
