package buildpipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"movepvm/internal/driver"
	"movepvm/internal/logging"
	runtimeembed "movepvm/runtime"
)

const runtimeTarget = "riscv64-rv64emac-lp64e"

// prepareRuntime places the native runtime object in tmpDir and returns its
// path. A configured precompiled object wins; otherwise the embedded C
// sources are compiled, with the result cached by content hash.
func prepareRuntime(ctx context.Context, req *BuildRequest, tmpDir string) (string, string, error) {
	if req.RuntimeObject != "" {
		if _, err := os.Stat(req.RuntimeObject); err != nil {
			return "", "", fmt.Errorf("runtime object: %w", err)
		}
		return req.RuntimeObject, "precompiled", nil
	}

	tools := req.Tools
	flags := append(append([]string{tools.clang()}, clangTargetFlags...), runtimeCFlags...)
	key, err := driver.SourcesDigest(runtimeembed.NativeRuntimeFS(), runtimeembed.Root, flags...)
	if err != nil {
		return "", "", fmt.Errorf("hash embedded runtime: %w", err)
	}
	objPath := filepath.Join(tmpDir, "runtime.o")
	log := logging.Named("build")

	var payload driver.DiskPayload
	if ok, err := req.Cache.Get(key, &payload); err != nil {
		log.Warn("runtime cache unreadable", zap.Error(err))
	} else if ok {
		if err := os.WriteFile(objPath, payload.Object, 0o600); err != nil {
			return "", "", fmt.Errorf("write cached runtime: %w", err)
		}
		return objPath, "cached " + key.String()[:12], nil
	}

	runtimeDir, sources, err := extractNativeRuntime(tmpDir)
	if err != nil {
		return "", "", err
	}
	clang, err := lookup(tools.clang(), llvmInstallHint)
	if err != nil {
		return "", "", err
	}
	objs := make([]string, 0, len(sources))
	for _, src := range sources {
		obj := strings.TrimSuffix(src, filepath.Ext(src)) + ".o"
		args := append(append([]string{}, clangTargetFlags...), runtimeCFlags...)
		args = append(args, "-I", runtimeDir, "-c", src, "-o", obj)
		if err := tools.run(ctx, clang, args...); err != nil {
			return "", "", err
		}
		objs = append(objs, obj)
	}
	if err := relocatableLink(ctx, tools, objPath, objs...); err != nil {
		return "", "", err
	}

	data, err := os.ReadFile(objPath) // #nosec G304 -- path is inside the build tmp dir
	if err != nil {
		return "", "", fmt.Errorf("read runtime object: %w", err)
	}
	defined, err := definedSymbols(objPath)
	if err != nil {
		return "", "", err
	}
	err = req.Cache.Put(key, &driver.DiskPayload{
		Target:  runtimeTarget,
		Sources: runtimeembed.Sources(),
		Flags:   flags,
		Defined: defined,
		Object:  data,
	})
	if err != nil {
		log.Warn("runtime cache not updated", zap.Error(err))
	}
	return objPath, fmt.Sprintf("compiled %d sources", len(sources)), nil
}

func extractNativeRuntime(tmpDir string) (runtimeDir string, sources []string, errNativeRuntime error) {
	runtimeDir = filepath.Join(tmpDir, "native_runtime")
	if err := os.MkdirAll(runtimeDir, 0o750); err != nil {
		return "", nil, fmt.Errorf("failed to create native runtime dir: %w", err)
	}

	fsys := runtimeembed.NativeRuntimeFS()
	walkErr := fs.WalkDir(fsys, runtimeembed.Root, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(entryPath, runtimeembed.Root+"/")
		if rel == entryPath {
			return fmt.Errorf("unexpected embedded runtime path: %s", entryPath)
		}
		dst := filepath.Join(runtimeDir, filepath.FromSlash(rel))
		data, err := fs.ReadFile(fsys, entryPath)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			return err
		}
		if strings.HasSuffix(entryPath, ".c") {
			sources = append(sources, dst)
		}
		return nil
	})
	if walkErr != nil {
		return "", nil, fmt.Errorf("failed to extract embedded runtime sources: %w", walkErr)
	}
	if len(sources) == 0 {
		return "", nil, fmt.Errorf("embedded runtime sources missing (build bug)")
	}
	return runtimeDir, sources, nil
}

// relocatableLink combines objects with ld.lld -r.
func relocatableLink(ctx context.Context, tools Toolchain, out string, objs ...string) error {
	ld, err := lookup(tools.ldlld(), llvmInstallHint)
	if err != nil {
		return err
	}
	args := append([]string{"-r"}, objs...)
	args = append(args, "-o", out)
	return tools.run(ctx, ld, args...)
}
