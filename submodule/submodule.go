// Package submodule provides a high-level wrapper for go-git submodule
// operations: initializing and fast-forwarding the project's submodules and
// reporting the commit each one is pinned to.
package submodule

import (
	"context"
	stderrors "errors"

	"github.com/go-git/go-git/v5"

	"github.com/blakeNaccarato/boilercv/errors"
)

// TemplateName is the submodule tracking the project scaffolding template.
const TemplateName = "template"

// Pin identifies a submodule and the commit the superproject tracks for it.
type Pin struct {
	// Name is the submodule name from .gitmodules.
	Name string

	// Path is the submodule path relative to the repository root.
	Path string

	// Commit is the commit hash the superproject currently tracks.
	Commit string
}

// Repo wraps a git repository's submodule operations.
type Repo struct {
	repo *git.Repository
}

// Open opens the repository at the given OS path.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.WrapErrorf(err, "opening repository at %q", path)
	}
	return &Repo{repo: repo}, nil
}

// Sync initializes any uninitialized submodules and fast-forwards each to
// the commit the superproject tracks.
//
// Context cancellation is honored between submodules, not mid-update.
func (r *Repo) Sync(ctx context.Context) error {
	subs, err := r.submodules()
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := sub.Update(&git.SubmoduleUpdateOptions{Init: true})
		if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
			return errors.WrapErrorf(err, "updating submodule %q", sub.Config().Name)
		}
	}
	return nil
}

// Pins reports the tracked commit for every submodule.
func (r *Repo) Pins() ([]Pin, error) {
	subs, err := r.submodules()
	if err != nil {
		return nil, err
	}
	pins := make([]Pin, 0, len(subs))
	for _, sub := range subs {
		status, err := sub.Status()
		if err != nil {
			return nil, errors.WrapErrorf(err, "reading status of submodule %q", sub.Config().Name)
		}
		pins = append(pins, Pin{
			Name:   sub.Config().Name,
			Path:   sub.Config().Path,
			Commit: status.Expected.String(),
		})
	}
	return pins, nil
}

func (r *Repo) submodules() (git.Submodules, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, errors.WrapError(err, "getting worktree")
	}
	subs, err := worktree.Submodules()
	if err != nil {
		return nil, errors.WrapError(err, "listing submodules")
	}
	return subs, nil
}
