package console

import (
	"context"
	"fmt"

	"localcloud/pkg/config"
	"localcloud/pkg/menu"
	"localcloud/pkg/model"
)

func (c *Console) environments(svc model.Service) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		fresh, err := c.api.Service(ctx, svc.ID)
		if err != nil {
			return c.failed(ctx, err, c.serviceMenu(svc))
		}
		if fresh.Name == "" {
			fresh.Name = svc.Name
		}
		if fresh.ID == "" {
			fresh.ID = svc.ID
		}

		labels := make([]string, len(fresh.Environments))
		for i, e := range fresh.Environments {
			labels[i] = e.Name
		}
		choices, first := withRecords(actions(config.NewEnvironmentItem), labels)
		sel, err := c.nav.Render(ctx, "Select or Add Environment", choices, true)
		if err != nil || sel.Back {
			return nil, err
		}
		if sel.Index < first {
			return c.newEnvironment(fresh), nil
		}
		return c.environmentMenu(fresh, fresh.Environments[sel.Index-first]), nil
	}
}

func (c *Console) newEnvironment(svc model.Service) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		answers, err := c.nav.CollectForm(ctx, []menu.Field{
			{Name: "name", Prompt: "Enter name:", Validate: required("Name")},
			{Name: "branch", Prompt: "Enter git branch:", Validate: required("Branch")},
			{Name: "port", Prompt: "Enter service/app port:", Validate: validPort},
			{Name: "domain", Prompt: domainPrompt, Validate: validDomain},
		})
		if err != nil {
			return nil, err
		}
		server, ok, err := c.pickServer(ctx, "Select a server where to deploy a service/app")
		if err != nil {
			return nil, err
		}
		if !ok {
			return c.environments(svc), nil
		}

		req := model.EnvironmentRequest{
			Name:    answers["name"],
			Branch:  answers["branch"],
			Port:    model.Port(answers["port"]),
			Domain:  answers["domain"],
			Servers: []model.ServerAssignment{{ID: server.ID, Status: model.StatusToDeploy}},
		}
		if err := c.api.CreateEnvironment(ctx, svc.ID, req); err != nil {
			return c.failed(ctx, err, c.environments(svc))
		}
		c.record(ctx, model.EventCreate, "environment", svc.ID.String()+"/"+req.Name)
		c.nav.Printf("%s\n", okStyle.Render(fmt.Sprintf("%q environment in %q service has been created and will be accessible at https://%s shortly.", req.Name, svc.Name, req.Domain)))
		return c.environments(svc), nil
	}
}

func (c *Console) environmentMenu(svc model.Service, env model.Environment) menu.Screen {
	return func(ctx context.Context) (menu.Screen, error) {
		title := fmt.Sprintf("What do you want to do with %q environment in %q service?\nEnvironment URL: https://%s\nGit branch:  %s\nPort: %s",
			env.Name, svc.Name, env.Domain, env.Branch, env.Port)
		sel, err := c.nav.Render(ctx, title, actions("View Details", "Delete Environment"), true)
		if err != nil || sel.Back {
			return nil, err
		}
		if sel.Index == 0 {
			c.nav.Printf("%s", environmentDetails(env))
			return c.environmentMenu(svc, env), nil
		}

		ok, err := c.nav.ConfirmDelete(ctx, fmt.Sprintf("Do you really want to delete %q environment in %q service?", env.Name, svc.Name))
		if err != nil {
			return nil, err
		}
		if !ok {
			return c.environmentMenu(svc, env), nil
		}
		if err := c.api.DeleteEnvironment(ctx, svc.ID, env.Name); err != nil {
			return c.failed(ctx, err, c.environments(svc))
		}
		c.record(ctx, model.EventDelete, "environment", svc.ID.String()+"/"+env.Name)
		c.nav.Printf("%s\n", okStyle.Render(fmt.Sprintf("%q environment in %q service has been deleted", env.Name, svc.Name)))
		return nil, nil
	}
}

func environmentDetails(env model.Environment) string {
	s := fmt.Sprintf("\nEnvironment: %s\nURL: https://%s\nBranch: %s\nPort: %s\n", env.Name, env.Domain, env.Branch, env.Port)
	for _, srv := range env.Servers {
		s += fmt.Sprintf("Server: %s (%s)\n", srv.ID, srv.Status)
	}
	if env.ImageID != "" {
		s += "Image: " + env.ImageID + "\n"
	}
	return s + "\n"
}
