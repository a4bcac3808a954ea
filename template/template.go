// Package template re-applies the project scaffolding template through
// copier, pinned to an explicit revision so CI runs are reproducible.
package template

import (
	"context"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/executor"
)

// Updater applies scaffolding updates with copier.
type Updater struct {
	copier *executor.Tool
}

// NewUpdater creates an Updater driving the given copier tool.
func NewUpdater(copier *executor.Tool) *Updater {
	return &Updater{copier: copier}
}

// Update re-applies the template at the given revision, accepting template
// defaults and overwriting tracked files with the template's versions.
func (u *Updater) Update(ctx context.Context, revision string) error {
	if revision == "" {
		return errors.WrapError(errors.ErrInvalidConfig, "template revision is empty")
	}
	_, err := u.copier.Run(ctx, "update", "--defaults", "--vcs-ref", revision)
	return err
}
