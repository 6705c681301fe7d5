// Package buildpipeline orchestrates the compilation of a unit into a
// PolkaVM blob: in-process lowering, object code generation, the native
// runtime, relocatable linking and polkatool.
package buildpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"movepvm/internal/driver"
	"movepvm/internal/logging"
	"movepvm/internal/pvmblob"
	"movepvm/internal/sbc"
)

// BuildRequest configures output generation for a compilation.
type BuildRequest struct {
	// InputPath is a msgpack unit; Unit is used when it is empty.
	InputPath string
	Unit      *sbc.Unit

	// OutputPath defaults to <input name>.polkavm in the working directory.
	OutputPath string
	// TmpDir defaults to <output dir>/.tmp/<output name>.
	TmpDir  string
	KeepTmp bool
	// EmitLLVM stops after writing out.ll (kept next to the output) and
	// runs no external tools.
	EmitLLVM bool
	// Debug keeps symbol names in the blob (no polkatool --strip).
	Debug bool

	RuntimeObject  string
	Jobs           int
	MaxDiagnostics int
	Tools          Toolchain
	Cache          *driver.DiskCache
	Progress       ProgressSink
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	OutputPath string
	IRPath     string
	TmpDir     string
	Compile    *driver.Result
	Blob       *pvmblob.Blob
	Timings    Timings
}

// stageRunner reports start/end events and records the duration.
type stageRunner struct {
	sink    ProgressSink
	timings *Timings
}

func (s stageRunner) do(stage Stage, fn func() (string, error)) error {
	start := time.Now()
	emit(s.sink, stage, StatusWorking, "", nil)
	detail, err := fn()
	elapsed := time.Since(start)
	s.timings.Set(stage, elapsed)
	status := StatusDone
	if err != nil {
		status = StatusError
	}
	if s.sink != nil {
		s.sink.OnEvent(Event{Stage: stage, Status: status, Detail: detail, Err: err, Elapsed: elapsed})
	}
	return err
}

// Build compiles the unit and links it into a validated .polkavm blob.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	reqCopy := *req
	req = &reqCopy
	if req.InputPath == "" && req.Unit == nil {
		return result, fmt.Errorf("missing input unit")
	}
	if req.OutputPath == "" {
		req.OutputPath = defaultOutputName(req.InputPath)
	}
	if req.TmpDir == "" {
		req.TmpDir = filepath.Join(filepath.Dir(req.OutputPath), ".tmp", filepath.Base(req.OutputPath))
	}
	if req.Tools.CommandLog == nil {
		req.Tools.CommandLog = os.Stdout
	}
	result.OutputPath = req.OutputPath
	result.TmpDir = req.TmpDir
	log := logging.Named("build")

	emitQueued(req.Progress)
	run := stageRunner{sink: req.Progress, timings: &result.Timings}
	opts := &driver.Options{MaxDiagnostics: req.MaxDiagnostics, Jobs: req.Jobs}

	u := req.Unit
	err := run.do(StageLoad, func() (string, error) {
		if u != nil {
			return "in-memory unit", sbc.Validate(u, opts.MaxDiagnostics)
		}
		var err error
		u, err = sbc.LoadFile(req.InputPath)
		if err != nil {
			return "", err
		}
		return req.InputPath, sbc.Validate(u, opts.MaxDiagnostics)
	})
	if err != nil {
		return result, err
	}

	if err := os.MkdirAll(req.TmpDir, 0o750); err != nil {
		return result, fmt.Errorf("failed to create tmp dir: %w", err)
	}
	llPath := filepath.Join(req.TmpDir, "out.ll")
	err = run.do(StageLower, func() (string, error) {
		res, err := driver.Compile(ctx, u, opts)
		result.Compile = res
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(llPath, []byte(res.IR), 0o600); err != nil {
			return "", fmt.Errorf("failed to write LLVM IR: %w", err)
		}
		return fmt.Sprintf("%d functions, %d entries", len(res.Program.Instances), len(res.Table.Entries)), nil
	})
	if err != nil {
		return result, err
	}
	result.IRPath = llPath

	if req.EmitLLVM {
		out := strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + ".ll"
		if err := os.Rename(llPath, out); err != nil {
			return result, fmt.Errorf("failed to keep LLVM IR: %w", err)
		}
		result.IRPath = out
		result.OutputPath = out
		return result, cleanup(req, &result)
	}

	objPath := filepath.Join(req.TmpDir, "out.o")
	err = run.do(StageCodegen, func() (string, error) {
		return "", compileIR(ctx, req.Tools, llPath, objPath)
	})
	if err != nil {
		return result, err
	}

	var runtimeObj string
	err = run.do(StageRuntime, func() (string, error) {
		var detail string
		var err error
		runtimeObj, detail, err = prepareRuntime(ctx, req, req.TmpDir)
		return detail, err
	})
	if err != nil {
		return result, err
	}

	combined := filepath.Join(req.TmpDir, "combined.o")
	err = run.do(StageLink, func() (string, error) {
		if err := relocatableLink(ctx, req.Tools, combined, objPath, runtimeObj); err != nil {
			return "", err
		}
		return "", CheckObject(combined)
	})
	if err != nil {
		return result, err
	}

	err = run.do(StagePolkaVM, func() (string, error) {
		blob, err := polkaLink(ctx, req.Tools, combined, req.OutputPath, !req.Debug)
		if err != nil {
			return "", err
		}
		result.Blob = blob
		return fmt.Sprintf("%d bytes of code", len(blob.Code)), nil
	})
	if err != nil {
		return result, err
	}

	log.Info("blob written", zap.String("path", req.OutputPath), zap.Duration("total", result.Timings.Sum(Stages()...)))
	return result, cleanup(req, &result)
}

// polkaLink runs polkatool and validates what it produced.
func polkaLink(ctx context.Context, tools Toolchain, in, out string, strip bool) (*pvmblob.Blob, error) {
	pt, err := lookup(tools.polkatool(), polkatoolInstallHint)
	if err != nil {
		return nil, err
	}
	args := []string{"link"}
	if strip {
		args = append(args, "--strip")
	}
	args = append(args, in, "-o", out)
	if err := tools.run(ctx, pt, args...); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out) // #nosec G304 -- output path from the build configuration
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	blob, err := pvmblob.ParseAndValidate(data)
	if err != nil {
		_ = os.Remove(out)
		return nil, err
	}
	return blob, nil
}

func cleanup(req *BuildRequest, result *BuildResult) error {
	if req.KeepTmp {
		return nil
	}
	result.TmpDir = ""
	if err := os.RemoveAll(req.TmpDir); err != nil {
		return fmt.Errorf("failed to clean tmp dir: %w", err)
	}
	return nil
}

func defaultOutputName(input string) string {
	base := filepath.Base(input)
	if input == "" {
		base = "out"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".polkavm"
}
