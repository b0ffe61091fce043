package gitops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/rs/zerolog/log"
)

const apiTimeout = 60 * time.Second

// githubClient builds an authenticated API client, pointed at the
// configured base URL when one is set.
func (g *gitOps) githubClient() (*github.Client, error) {
	client := github.NewClient(g.client).WithAuthToken(g.token)
	if g.apiBaseURL != "" {
		base := g.apiBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

func (g *gitOps) createPullRequest() command.Command {
	return command.New("create_pull_request", "Create a pull request on GitHub", command.CategoryGit,
		[]command.Arg{
			repoPathArg,
			{Name: "base_branch", Description: "Branch the changes merge into", Required: true},
			{Name: "head_branch", Description: "Branch holding the changes", Required: true},
			{Name: "title", Required: true},
			{Name: "body", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				RepoPath   string `json:"repo_path"`
				BaseBranch string `json:"base_branch"`
				HeadBranch string `json:"head_branch"`
				Title      string `json:"title"`
				Body       string `json:"body"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			origin, err := remoteURL(repo, "origin")
			if err != nil {
				return nil, err
			}
			remote, err := ParseRemote(origin)
			if err != nil {
				return nil, err
			}

			client, err := g.githubClient()
			if err != nil {
				return nil, err
			}
			ctx, cancel := context.WithTimeout(ctx, apiTimeout)
			defer cancel()

			pr, _, err := client.PullRequests.Create(ctx, remote.Owner, remote.Name, &github.NewPullRequest{
				Title: github.String(in.Title),
				Head:  github.String(in.HeadBranch),
				Base:  github.String(in.BaseBranch),
				Body:  github.String(in.Body),
			})
			if err != nil {
				return nil, fmt.Errorf("create pull request on %s/%s: %w", remote.Owner, remote.Name, err)
			}
			log.Info().
				Str("repo", remote.Owner+"/"+remote.Name).
				Int("number", pr.GetNumber()).
				Msg("pull request created")

			return &command.Result{
				Title:    fmt.Sprintf("#%d", pr.GetNumber()),
				Output:   fmt.Sprintf("Pull request created: %s", pr.GetHTMLURL()),
				Metadata: map[string]any{"number": pr.GetNumber(), "url": pr.GetHTMLURL()},
			}, nil
		})
}
