// Package asana creates and lists tasks through the Asana REST API.
package asana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/plugin"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

const (
	Name           = "asana"
	DefaultBaseURL = "https://app.asana.com/api/1.0"
)

var errNoProject = errors.New("no project given and ASANA_PROJECT_ID is not set")

// Task is the subset of an Asana task the commands use.
type Task struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	Notes        string `json:"notes,omitempty"`
	Completed    bool   `json:"completed"`
	PermalinkURL string `json:"permalink_url,omitempty"`
}

type api struct {
	client  *plugin.Client
	base    string
	token   string
	project string
	space   string
}

// Register adds asana_create_task and asana_list_tasks to reg.
func Register(reg *command.Registry, cfg *types.Config, client *plugin.Client) {
	a := &api{client: client, base: DefaultBaseURL}
	if cfg != nil && cfg.Plugins != nil && cfg.Plugins.Asana != nil {
		ac := cfg.Plugins.Asana
		a.token = ac.AccessToken
		a.project = ac.ProjectID
		a.space = ac.WorkspaceID
		if ac.BaseURL != "" {
			a.base = strings.TrimRight(ac.BaseURL, "/")
		}
	}
	gate := plugin.Gate(cfg, Name, a.token != "", "ASANA_ACCESS_TOKEN")

	reg.Register(command.NewPlugin(Name, "asana_create_task", "Create Asana Task",
		[]command.Arg{
			{Name: "name", Description: "Task name", Required: true},
			{Name: "notes", Description: "Task description"},
			{Name: "project", Description: "Project gid (defaults to ASANA_PROJECT_ID)"},
		}, a.createTask), gate)
	reg.Register(command.NewPlugin(Name, "asana_list_tasks", "List Asana Tasks",
		[]command.Arg{{Name: "project", Description: "Project gid (defaults to ASANA_PROJECT_ID)"}},
		a.listTasks), gate)
}

func (a *api) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.token)
	return h
}

func (a *api) projectOr(project string) (string, error) {
	if project != "" {
		return project, nil
	}
	if a.project != "" {
		return a.project, nil
	}
	return "", errNoProject
}

func (a *api) createTask(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
	var in struct {
		Name    string `json:"name"`
		Notes   string `json:"notes"`
		Project string `json:"project"`
	}
	if err := command.Decode(input, &in); err != nil {
		return nil, err
	}
	project, err := a.projectOr(in.Project)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":     in.Name,
		"projects": []string{project},
	}
	if in.Notes != "" {
		body["notes"] = in.Notes
	}
	if a.space != "" {
		body["workspace"] = a.space
	}

	var resp struct {
		Data Task `json:"data"`
	}
	if err := a.client.JSON(ctx, http.MethodPost, a.base+"/tasks", a.header(), map[string]any{"data": body}, &resp); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	out := fmt.Sprintf("Created Asana task %q (gid %s).", resp.Data.Name, resp.Data.GID)
	if resp.Data.PermalinkURL != "" {
		out += " " + resp.Data.PermalinkURL
	}
	return &command.Result{
		Title:    resp.Data.Name,
		Output:   out,
		Metadata: map[string]any{"gid": resp.Data.GID},
	}, nil
}

func (a *api) listTasks(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
	var in struct {
		Project string `json:"project"`
	}
	if err := command.Decode(input, &in); err != nil {
		return nil, err
	}
	project, err := a.projectOr(in.Project)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/projects/%s/tasks?opt_fields=%s",
		a.base, url.PathEscape(project), url.QueryEscape("name,completed"))
	var resp struct {
		Data []Task `json:"data"`
	}
	if err := a.client.JSON(ctx, http.MethodGet, endpoint, a.header(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(resp.Data) == 0 {
		return &command.Result{Title: project, Output: "No tasks in project " + project + "."}, nil
	}
	var sb strings.Builder
	for _, t := range resp.Data {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] %s (%s)\n", mark, t.Name, t.GID)
	}
	return &command.Result{
		Title:    project,
		Output:   strings.TrimRight(sb.String(), "\n"),
		Metadata: map[string]any{"count": len(resp.Data)},
	}, nil
}
