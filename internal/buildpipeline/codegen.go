package buildpipeline

import (
	"context"
	"errors"
	"fmt"
)

// compileIR lowers textual IR to a riscv64 object with clang, falling back to
// llc when clang is missing or rejects the module.
func compileIR(ctx context.Context, tools Toolchain, llPath, objPath string) error {
	var clangErr error
	if clang, err := lookup(tools.clang(), llvmInstallHint); err == nil {
		args := append(append([]string{}, clangTargetFlags...), "-O2", "-c", "-x", "ir", llPath, "-o", objPath)
		if clangErr = tools.run(ctx, clang, args...); clangErr == nil {
			return nil
		}
	} else {
		clangErr = err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Fallback to llc
	llc, err := lookup(tools.llc(), llvmInstallHint)
	if err != nil {
		return errors.Join(clangErr, err)
	}
	args := append(append([]string{}, llcTargetFlags...), "-O2", "-filetype=obj", llPath, "-o", objPath)
	if err := tools.run(ctx, llc, args...); err != nil {
		return errors.Join(clangErr, err)
	}
	if tools.PrintCommands && tools.CommandLog != nil {
		if _, err := fmt.Fprintln(tools.CommandLog, "note: clang IR compile failed; fell back to llc"); err != nil {
			return fmt.Errorf("failed to print command: %w", err)
		}
	}
	return nil
}
