package devcfg

import (
	"context"
	"io"
	"log/slog"
	"path"

	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
)

// hookScript is the hook path pre-commit manages.
var hookScript = path.Join(".git", "hooks", "pre-commit")

// HookInstaller installs source-control hooks when they are missing.
// Already-installed hooks are left untouched.
type HookInstaller struct {
	fs     fsys.Filesystem
	tool   *executor.Tool
	logger *slog.Logger
}

// NewHookInstaller creates a HookInstaller driving the given pre-commit tool.
func NewHookInstaller(fs fsys.Filesystem, tool *executor.Tool, logger *slog.Logger) *HookInstaller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HookInstaller{fs: fs, tool: tool, logger: logger}
}

// Install installs the pre-commit hook if it is not already present.
func (h *HookInstaller) Install(ctx context.Context) error {
	installed, err := h.fs.Exists(hookScript)
	if err != nil {
		return err
	}
	if installed {
		h.logger.Debug("pre-commit hook already installed")
		return nil
	}
	_, err = h.tool.Run(ctx, "install")
	return err
}
