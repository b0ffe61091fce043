package gitops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/opencode-ai/agentcmd/internal/command"
)

const logLimit = 25

var repoPathArg = command.Arg{Name: "repo_path", Description: "Repository directory", Required: true}

type gitInput struct {
	RepoPath   string `json:"repo_path"`
	FilePath   string `json:"file_path"`
	Message    string `json:"message"`
	RemoteName string `json:"remote_name"`
	BranchName string `json:"branch_name"`
}

func decodeGit(input json.RawMessage) (gitInput, error) {
	var in gitInput
	err := command.Decode(input, &in)
	return in, err
}

func (g *gitOps) cloneRepository() command.Command {
	return command.New("clone_repository", "Clone Repository", command.CategoryGit,
		[]command.Arg{
			{Name: "url", Description: "Repository URL", Required: true},
			{Name: "clone_path", Description: "Destination directory", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				URL       string `json:"url"`
				ClonePath string `json:"clone_path"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			if !isHTTPURL(in.URL) {
				return nil, fmt.Errorf("invalid URL %q: must be http or https", in.URL)
			}
			path, err := cctx.Resolve(in.ClonePath)
			if err != nil {
				return nil, err
			}
			_, err = git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
				URL:  in.URL,
				Auth: g.auth(in.URL),
			})
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Title:  filepath.Base(path),
				Output: fmt.Sprintf("Cloned %s to %s", in.URL, in.ClonePath),
			}, nil
		})
}

func (g *gitOps) initRepository() command.Command {
	return command.New("init_repository", "Initialize a new git repository", command.CategoryGit,
		[]command.Arg{repoPathArg},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.RepoPath)
			if err != nil {
				return nil, err
			}
			_, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
				InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
			})
			if err != nil {
				return nil, err
			}
			return &command.Result{Output: fmt.Sprintf("Initialized a new git repository at %s", in.RepoPath)}, nil
		})
}

// worktreePath converts a file argument to a path relative to the
// repository root. Relative arguments are taken as repository relative.
func worktreePath(root, file string) (string, error) {
	if !filepath.IsAbs(file) {
		return filepath.ToSlash(filepath.Clean(file)), nil
	}
	rel, err := filepath.Rel(root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the repository", file)
	}
	return filepath.ToSlash(rel), nil
}

func (g *gitOps) gitAdd() command.Command {
	return command.New("git_add", "Add files to the staging area", command.CategoryGit,
		[]command.Arg{repoPathArg, {Name: "file_path", Description: "File to stage, relative to the repository; . for everything", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, root, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			wt, err := repo.Worktree()
			if err != nil {
				return nil, err
			}
			file, err := worktreePath(root, in.FilePath)
			if err != nil {
				return nil, err
			}
			if file == "." {
				err = wt.AddWithOptions(&git.AddOptions{All: true})
			} else {
				_, err = wt.Add(file)
			}
			if err != nil {
				return nil, err
			}
			return &command.Result{Output: fmt.Sprintf("Added %s to the staging area", in.FilePath)}, nil
		})
}

func (g *gitOps) gitRemove() command.Command {
	return command.New("git_remove", "Remove a file from the git staging area", command.CategoryGit,
		[]command.Arg{repoPathArg, {Name: "file_path", Description: "File to unstage; it stays on disk", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, root, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			file, err := worktreePath(root, in.FilePath)
			if err != nil {
				return nil, err
			}

			idx, err := repo.Storer.Index()
			if err != nil {
				return nil, err
			}
			if _, err := idx.Remove(file); err != nil {
				if errors.Is(err, index.ErrEntryNotFound) {
					return nil, fmt.Errorf("%s is not in the staging area", in.FilePath)
				}
				return nil, err
			}
			if err := repo.Storer.SetIndex(idx); err != nil {
				return nil, err
			}
			return &command.Result{Output: fmt.Sprintf("Removed %s from the staging area", in.FilePath)}, nil
		})
}

func (g *gitOps) signature() *object.Signature {
	return &object.Signature{Name: g.authorName, Email: g.authorEmail, When: time.Now()}
}

func (g *gitOps) gitCommit() command.Command {
	return command.New("git_commit", "Commit changes to the repository", command.CategoryGit,
		[]command.Arg{repoPathArg, {Name: "message", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			wt, err := repo.Worktree()
			if err != nil {
				return nil, err
			}
			hash, err := wt.Commit(in.Message, &git.CommitOptions{Author: g.signature()})
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Output:   fmt.Sprintf("Committed changes with message: %s", in.Message),
				Metadata: map[string]any{"commit": hash.String()},
			}, nil
		})
}

var remoteArgs = []command.Arg{
	repoPathArg,
	{Name: "remote_name", Description: "Remote, usually origin", Required: true},
	{Name: "branch_name", Required: true},
}

func (g *gitOps) gitPush() command.Command {
	return command.New("git_push", "Push changes to a remote repository", command.CategoryGit, remoteArgs,
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			url, err := remoteURL(repo, in.RemoteName)
			if err != nil {
				return nil, err
			}
			head, err := repo.Head()
			if err != nil {
				return nil, fmt.Errorf("resolve HEAD: %w", err)
			}

			spec := config.RefSpec(fmt.Sprintf("%s:%s", head.Name(), plumbing.NewBranchReferenceName(in.BranchName)))
			err = repo.PushContext(ctx, &git.PushOptions{
				RemoteName: in.RemoteName,
				RefSpecs:   []config.RefSpec{spec},
				Auth:       g.auth(url),
			})
			if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
				return nil, err
			}
			return &command.Result{Output: fmt.Sprintf("Pushed changes to %s/%s", in.RemoteName, in.BranchName)}, nil
		})
}

func (g *gitOps) gitPull() command.Command {
	return command.New("git_pull", "Pull changes from a remote repository", command.CategoryGit, remoteArgs,
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			url, err := remoteURL(repo, in.RemoteName)
			if err != nil {
				return nil, err
			}
			wt, err := repo.Worktree()
			if err != nil {
				return nil, err
			}
			err = wt.PullContext(ctx, &git.PullOptions{
				RemoteName:    in.RemoteName,
				ReferenceName: plumbing.NewBranchReferenceName(in.BranchName),
				Auth:          g.auth(url),
			})
			if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
				return nil, err
			}
			return &command.Result{Output: fmt.Sprintf("Pulled changes from %s/%s", in.RemoteName, in.BranchName)}, nil
		})
}

func (g *gitOps) checkoutBranch() command.Command {
	return command.New("checkout_branch", "Checkout / create & switch to a git branch", command.CategoryGit,
		[]command.Arg{repoPathArg, {Name: "branch_name", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			wt, err := repo.Worktree()
			if err != nil {
				return nil, err
			}

			ref := plumbing.NewBranchReferenceName(in.BranchName)
			_, err = repo.Reference(ref, true)
			create := errors.Is(err, plumbing.ErrReferenceNotFound)
			if err != nil && !create {
				return nil, err
			}
			if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: create}); err != nil {
				return nil, err
			}
			if create {
				return &command.Result{Output: fmt.Sprintf("Created a new branch '%s' and switched to it.", in.BranchName)}, nil
			}
			return &command.Result{Output: fmt.Sprintf("Switched to the branch '%s'.", in.BranchName)}, nil
		})
}

func (g *gitOps) mergeBranch() command.Command {
	return command.New("merge_branch", "Merge a git branch into the current branch", command.CategoryGit,
		[]command.Arg{repoPathArg, {Name: "branch_name", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			msg, err := fastForward(repo, in.BranchName)
			if err != nil {
				return nil, err
			}
			return &command.Result{Output: msg}, nil
		})
}

// fastForward moves the current branch to branch when that is a fast
// forward, and updates the worktree to match.
func fastForward(repo *git.Repository, branch string) (string, error) {
	other, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("Branch '%s' not found.", branch)
	}
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	current := head.Name().Short()

	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", err
	}
	otherCommit, err := repo.CommitObject(other.Hash())
	if err != nil {
		return "", err
	}
	if other.Hash() == head.Hash() {
		return fmt.Sprintf("Branch '%s' is already up to date with '%s'.", current, branch), nil
	}
	if behind, err := otherCommit.IsAncestor(headCommit); err == nil && behind {
		return fmt.Sprintf("Branch '%s' is already up to date with '%s'.", current, branch), nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", err
	}
	if !status.IsClean() {
		return "", errors.New("working tree has uncommitted changes; commit or stash them before merging")
	}

	if err := repo.Merge(*other, git.MergeOptions{Strategy: git.FastForwardMerge}); err != nil {
		if errors.Is(err, git.ErrFastForwardMergeNotPossible) {
			return "", fmt.Errorf("cannot merge '%s' into '%s': branches have diverged and only fast-forward merges are supported", branch, current)
		}
		return "", err
	}
	if err := wt.Reset(&git.ResetOptions{Commit: other.Hash(), Mode: git.HardReset}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully merged branch '%s' into '%s'.", branch, current), nil
}

func (g *gitOps) gitStatus() command.Command {
	return command.New("git_status", "Check the git status of the repository", command.CategoryGit,
		[]command.Arg{repoPathArg},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			out, err := statusReport(repo)
			if err != nil {
				return nil, err
			}
			return &command.Result{Output: out}, nil
		})
}

func statusReport(repo *git.Repository) (string, error) {
	branch := "(no commits yet)"
	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			branch = head.Name().Short()
		} else {
			branch = "HEAD detached at " + head.Hash().String()[:7]
		}
	} else if ref, err := repo.Storer.Reference(plumbing.HEAD); err == nil && ref.Type() == plumbing.SymbolicReference {
		branch = ref.Target().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", err
	}

	var staged, changed, untracked []string
	for file, s := range status {
		if s.Worktree == git.Untracked {
			untracked = append(untracked, file)
			continue
		}
		if s.Staging != git.Unmodified {
			staged = append(staged, file)
		}
		if s.Worktree != git.Unmodified {
			changed = append(changed, file)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current branch: %s\n", branch)
	section(&b, "Staged files", staged, "No staged files")
	section(&b, "Changed files", changed, "No changed files")
	section(&b, "Untracked files", untracked, "No untracked files")
	return strings.TrimRight(b.String(), "\n"), nil
}

func section(b *strings.Builder, title string, files []string, empty string) {
	b.WriteString(title + ":\n")
	if len(files) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	sort.Strings(files)
	for _, f := range files {
		b.WriteString(f + "\n")
	}
}

func (g *gitOps) gitLog() command.Command {
	return command.New("git_log", "Get the git log of the last 25 commits", command.CategoryGit,
		[]command.Arg{repoPathArg},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in, err := decodeGit(input)
			if err != nil {
				return nil, err
			}
			repo, _, err := openRepo(cctx, in.RepoPath)
			if err != nil {
				return nil, err
			}
			iter, err := repo.Log(&git.LogOptions{})
			if err != nil {
				return nil, err
			}
			defer iter.Close()

			var b strings.Builder
			n := 0
			err = iter.ForEach(func(c *object.Commit) error {
				if n == logLimit {
					return errStop
				}
				n++
				fmt.Fprintf(&b, "Commit: %s\n", c.Hash)
				fmt.Fprintf(&b, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
				fmt.Fprintf(&b, "Date: %s\n", c.Committer.When.Format("2006-01-02 15:04:05 -0700"))
				fmt.Fprintf(&b, "Message: %s\n\n", strings.TrimSpace(c.Message))
				return nil
			})
			if err != nil && !errors.Is(err, errStop) {
				return nil, err
			}
			return &command.Result{
				Output:   strings.TrimSpace(b.String()),
				Metadata: map[string]any{"count": n},
			}, nil
		})
}

var errStop = errors.New("stop")
