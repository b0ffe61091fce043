// Package gitops implements the git_operations command category on top of
// go-git, plus pull request creation through the GitHub API.
package gitops

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

// CredentialsReason is reported for remote commands when GitHub
// credentials are missing.
const CredentialsReason = "Configure github_username and github_api_key."

const (
	defaultAuthorName  = "agentcmd"
	defaultAuthorEmail = "agentcmd@localhost"
)

// Options carries the GitHub identity used by git commands.
type Options struct {
	Github     *types.GithubConfig
	HTTPClient *http.Client
}

type gitOps struct {
	username    string
	token       string
	authorName  string
	authorEmail string
	apiBaseURL  string
	client      *http.Client
}

// Register adds every git command to reg. Commands that talk to a remote
// are disabled without credentials.
func Register(reg *command.Registry, opts Options) {
	g := &gitOps{
		authorName:  defaultAuthorName,
		authorEmail: defaultAuthorEmail,
		client:      opts.HTTPClient,
	}
	if gh := opts.Github; gh != nil {
		g.username = gh.Username
		g.token = gh.APIKey
		g.apiBaseURL = gh.BaseURL
		if gh.AuthorName != "" {
			g.authorName = gh.AuthorName
		}
		if gh.AuthorEmail != "" {
			g.authorEmail = gh.AuthorEmail
		}
	}
	if g.client == nil {
		g.client = http.DefaultClient
	}
	remote := command.Require(g.username != "" && g.token != "", CredentialsReason)

	reg.Register(g.cloneRepository(), remote)
	reg.Register(g.initRepository(), command.Always)
	reg.Register(g.gitAdd(), command.Always)
	reg.Register(g.gitRemove(), command.Always)
	reg.Register(g.gitCommit(), command.Always)
	reg.Register(g.gitPush(), remote)
	reg.Register(g.gitPull(), remote)
	reg.Register(g.checkoutBranch(), command.Always)
	reg.Register(g.mergeBranch(), command.Always)
	reg.Register(g.gitStatus(), command.Always)
	reg.Register(g.gitLog(), command.Always)
	reg.Register(g.createPullRequest(), remote)
}

// auth returns basic auth for http(s) remotes and nil for everything else,
// so local and ssh remotes keep working.
func (g *gitOps) auth(remoteURL string) transport.AuthMethod {
	if g.token == "" || !isHTTPURL(remoteURL) {
		return nil
	}
	return &githttp.BasicAuth{Username: g.username, Password: g.token}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// openRepo opens the repository at a workspace path.
func openRepo(cctx *command.Context, repoPath string) (*git.Repository, string, error) {
	path, err := cctx.Resolve(repoPath)
	if err != nil {
		return nil, "", err
	}
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, "", fmt.Errorf("'%s' is not a git repository", repoPath)
	}
	if err != nil {
		return nil, "", err
	}
	return repo, path, nil
}

func remoteURL(repo *git.Repository, name string) (string, error) {
	remote, err := repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("remote %q: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %q has no URL", name)
	}
	return urls[0], nil
}

// RemoteRepo identifies a repository on a hosting service.
type RemoteRepo struct {
	Host  string
	Owner string
	Name  string
}

// ParseRemote extracts host, owner and name from https, ssh and scp-like
// git remote URLs.
func ParseRemote(raw string) (RemoteRepo, error) {
	s := raw
	if !strings.Contains(s, "://") {
		// git@github.com:owner/name.git
		at := strings.Index(s, "@")
		colon := strings.Index(s, ":")
		if colon <= at+1 {
			return RemoteRepo{}, fmt.Errorf("unsupported git URL: %s", raw)
		}
		s = "ssh://" + s[:colon] + "/" + s[colon+1:]
	}
	u, err := url.Parse(s)
	if err != nil {
		return RemoteRepo{}, fmt.Errorf("unsupported git URL: %s: %w", raw, err)
	}
	if u.Hostname() == "" {
		return RemoteRepo{}, fmt.Errorf("no hostname in git URL: %s", raw)
	}
	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RemoteRepo{}, fmt.Errorf("git URL has no owner/name: %s", raw)
	}
	return RemoteRepo{
		Host:  strings.ToLower(strings.TrimPrefix(u.Hostname(), "www.")),
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}
