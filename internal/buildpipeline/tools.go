package buildpipeline

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"movepvm/internal/diag"
	"movepvm/internal/logging"
)

const (
	llvmInstallHint      = "install with: sudo apt-get update && sudo apt-get install -y clang llvm lld"
	polkatoolInstallHint = "install with: cargo install polkatool"
)

// Flags for the PolkaVM rv64 target (RV64E with M, A and C extensions).
var (
	clangTargetFlags = []string{"--target=riscv64", "-march=rv64emac", "-mabi=lp64e"}
	llcTargetFlags   = []string{"-mtriple=riscv64", "-mattr=+e,+m,+a,+c"}
	runtimeCFlags    = []string{"-std=c11", "-O2", "-ffreestanding", "-fno-builtin", "-nostdlib", "-fPIC", "-fno-stack-protector", "-Wall"}
)

// Toolchain names the external programs; empty fields use the default names
// from PATH.
type Toolchain struct {
	Clang     string
	LLC       string
	LDLLD     string
	Polkatool string
	// PrintCommands echoes every command line to CommandLog before running it.
	PrintCommands bool
	CommandLog    io.Writer
}

func (t Toolchain) clang() string     { return orDefault(t.Clang, "clang") }
func (t Toolchain) llc() string       { return orDefault(t.LLC, "llc") }
func (t Toolchain) ldlld() string     { return orDefault(t.LDLLD, "ld.lld") }
func (t Toolchain) polkatool() string { return orDefault(t.Polkatool, "polkatool") }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// lookup resolves a tool to its path or fails with an install hint.
func lookup(name, hint string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", &diag.CompileError{
			Kind:   diag.ErrToolFailure,
			Code:   diag.LnkToolMissing,
			Detail: fmt.Sprintf("%s not found; %s", name, hint),
			Err:    err,
		}
	}
	return p, nil
}

// run executes one tool. A non-zero exit is a ToolFailure carrying the tool's
// stderr; there are no retries.
func (t Toolchain) run(ctx context.Context, name string, args ...string) error {
	if t.PrintCommands && t.CommandLog != nil {
		if _, err := fmt.Fprintf(t.CommandLog, "%s %s\n", name, strings.Join(args, " ")); err != nil {
			return fmt.Errorf("failed to print command: %w", err)
		}
	}
	logging.Named("build").Debug("exec", zap.String("tool", name), zap.Strings("args", args))

	// #nosec G204 -- tool names come from the build configuration
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return &diag.CompileError{
			Kind:   diag.ErrToolFailure,
			Code:   diag.LnkToolFailed,
			Detail: fmt.Sprintf("%s: %s", name, msg),
			Err:    err,
		}
	}
	return nil
}
