package executor

import "context"

// Tool binds a Runner to a specific program, giving call sites a clean
// interface for repeated invocations of one external tool.
type Tool struct {
	program string
	runner  Runner
	opts    []Option
}

// NewTool creates a Tool for the given program. The base options are applied
// to every invocation, before any per-call options.
func NewTool(runner Runner, program string, opts ...Option) *Tool {
	return &Tool{program: program, runner: runner, opts: opts}
}

// Program returns the program this tool invokes.
func (t *Tool) Program() string {
	return t.program
}

// Run invokes the tool with the given arguments.
func (t *Tool) Run(ctx context.Context, args ...string) (*Result, error) {
	return t.runner.Run(ctx, t.program, args, t.opts...)
}

// RunWith invokes the tool with per-call options appended to the base ones.
func (t *Tool) RunWith(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	merged := make([]Option, 0, len(t.opts)+len(opts))
	merged = append(merged, t.opts...)
	merged = append(merged, opts...)
	return t.runner.Run(ctx, t.program, args, merged...)
}
