// Package vcs reports branch switches in the workspace repository.
package vcs

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/opencode-ai/agentcmd/internal/event"
	"github.com/rs/zerolog/log"
)

// Watcher publishes vcs.branch.updated whenever HEAD moves to another branch.
type Watcher struct {
	workDir string
	gitDir  string
	bus     *event.Bus
	branch  atomic.Value // string
}

// NewWatcher prepares a watcher for the repository that contains workDir.
// It returns nil outside a repository. A nil bus means event.Default().
func NewWatcher(workDir string, bus *event.Bus) *Watcher {
	gitDir := gitDirOf(workDir)
	if gitDir == "" {
		log.Debug().Str("workDir", workDir).Msg("no git repository, branch watching off")
		return nil
	}
	if bus == nil {
		bus = event.Default()
	}
	w := &Watcher{workDir: workDir, gitDir: gitDir, bus: bus}
	w.branch.Store(Branch(workDir))
	return w
}

// Branch returns the last branch the watcher saw.
func (w *Watcher) Branch() string {
	return w.branch.Load().(string)
}

// Run watches the git directory until ctx is done. HEAD is replaced through
// a lock file rename, so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.gitDir); err != nil {
		return err
	}
	log.Info().Str("branch", w.Branch()).Str("gitDir", w.gitDir).Msg("watching branch")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == "HEAD" && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.refresh()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("branch watcher")
		}
	}
}

// refresh re-reads HEAD and publishes when the branch differs from the last
// one seen. It reports whether an event was published.
func (w *Watcher) refresh() bool {
	now := Branch(w.workDir)
	prev := w.branch.Swap(now).(string)
	if prev == now {
		return false
	}
	log.Info().Str("from", prev).Str("to", now).Msg("branch switched")
	w.bus.PublishSync(event.Event{
		Type: event.VcsBranchUpdated,
		Data: event.VcsBranchUpdatedData{Branch: now},
	})
	return true
}

func openRepo(dir string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

func gitDirOf(workDir string) string {
	repo, err := openRepo(workDir)
	if err != nil {
		return ""
	}
	st, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return ""
	}
	dir, err := filepath.Abs(st.Filesystem().Root())
	if err != nil {
		return st.Filesystem().Root()
	}
	return dir
}

// Branch names the branch checked out in dir. A detached HEAD yields "HEAD"
// and a directory outside any repository yields "".
func Branch(dir string) string {
	repo, err := openRepo(dir)
	if err != nil {
		return ""
	}
	ref, err := repo.Reference(plumbing.HEAD, false)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return ""
	case err != nil:
		log.Debug().Err(err).Str("dir", dir).Msg("read HEAD")
		return ""
	case ref.Type() == plumbing.SymbolicReference:
		return ref.Target().Short()
	default:
		return "HEAD"
	}
}
