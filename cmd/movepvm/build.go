package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"movepvm/internal/buildpipeline"
	"movepvm/internal/driver"
	"movepvm/internal/logging"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [unit]",
	Short: "Build a PolkaVM contract blob",
	Long:  "Build a .polkavm blob from a msgpack compilation unit, or from [build].input of movepvm.toml.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func buildExecution(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	emitLLVM, err := flags.GetBool("emit-llvm")
	if err != nil {
		return err
	}
	keepTmpFlag, err := flags.GetBool("keep-tmp")
	if err != nil {
		return err
	}
	printCommands, err := flags.GetBool("print-commands")
	if err != nil {
		return err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return err
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return err
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	input, manifest, err := resolveInput(args)
	if err != nil {
		return err
	}

	req := buildpipeline.BuildRequest{
		InputPath:      input,
		EmitLLVM:       emitLLVM,
		MaxDiagnostics: maxDiagnostics,
		Tools:          buildpipeline.Toolchain{PrintCommands: printCommands, CommandLog: os.Stdout},
	}
	outputRoot := "."
	if manifest != nil {
		applyManifest(&req, manifest)
		outputRoot = manifest.Root
	}
	if err := applyBuildFlags(cmd, &req); err != nil {
		return err
	}
	req.KeepTmp = req.KeepTmp || keepTmpFlag
	if output != "" {
		req.OutputPath = output
	}
	if !noCache {
		cache, cacheErr := driver.OpenDiskCache("movepvm")
		if cacheErr != nil {
			logging.Named("build").Sugar().Warnf("runtime cache disabled: %v", cacheErr)
		}
		req.Cache = cache
	}

	var res buildpipeline.BuildResult
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return err
	}
	if useProgressView(uiModeValue, printCommands, verbose) {
		res, err = runBuildWithUI(cmd.Context(), "movepvm build "+filepath.Base(input), &req)
	} else {
		req.Progress = buildpipeline.LogSink{Log: logging.Named("build")}
		res, err = buildpipeline.Build(cmd.Context(), &req)
	}
	out := cmd.OutOrStdout()
	if err != nil {
		printStageTimings(out, res.Timings)
		return err
	}
	if req.KeepTmp && res.TmpDir != "" {
		if _, err := fmt.Fprintf(out, "tmp dir: %s\n", formatPathForOutput(outputRoot, res.TmpDir)); err != nil {
			return err
		}
	}
	printStageTimings(out, res.Timings)
	if res.Blob != nil {
		_, err = fmt.Fprintf(out, "built %s (%d bytes of code, exports %s)\n",
			formatPathForOutput(outputRoot, res.OutputPath), len(res.Blob.Code), strings.Join(res.Blob.ExportNames(), ", "))
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %s\n", formatPathForOutput(outputRoot, res.OutputPath))
	return err
}

// applyManifest copies [build] settings into req; flags applied later win.
func applyManifest(req *buildpipeline.BuildRequest, m *projectManifest) {
	b := m.Config.Build
	req.OutputPath = filepath.Join(m.Root, "target", m.Config.Package.Name+".polkavm")
	req.Jobs = b.Jobs
	req.Debug = b.Profile == "debug"
	req.KeepTmp = b.KeepTmp
	req.RuntimeObject = m.resolvePath(b.RuntimeObject)
	req.Tools.Clang = m.resolvePath(b.Clang)
	req.Tools.LDLLD = m.resolvePath(b.LDLLD)
	req.Tools.Polkatool = m.resolvePath(b.Polkatool)
}

func applyBuildFlags(cmd *cobra.Command, req *buildpipeline.BuildRequest) error {
	flags := cmd.Flags()
	if flags.Changed("jobs") {
		jobs, err := flags.GetInt("jobs")
		if err != nil {
			return err
		}
		if jobs < 0 {
			return fmt.Errorf("--jobs must not be negative")
		}
		req.Jobs = jobs
	}
	if flags.Changed("debug") {
		debug, err := flags.GetBool("debug")
		if err != nil {
			return err
		}
		req.Debug = debug
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"runtime-object", &req.RuntimeObject},
		{"clang", &req.Tools.Clang},
		{"ld-lld", &req.Tools.LDLLD},
		{"polkatool", &req.Tools.Polkatool},
	}
	for _, s := range strs {
		if !flags.Changed(s.name) {
			continue
		}
		v, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = v
	}
	return nil
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output blob path")
	buildCmd.Flags().Bool("debug", false, "keep symbol names in the blob")
	buildCmd.Flags().Int("jobs", 0, "parallel function translation (0 = GOMAXPROCS)")
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
	buildCmd.Flags().Bool("emit-llvm", false, "write LLVM IR next to the output and stop")
	buildCmd.Flags().Bool("keep-tmp", false, "preserve the .tmp build directory")
	buildCmd.Flags().Bool("print-commands", false, "print external tool commands")
	buildCmd.Flags().Bool("no-cache", false, "do not use the runtime object cache")
	buildCmd.Flags().String("runtime-object", "", "precompiled native runtime object")
	buildCmd.Flags().String("clang", "", "clang executable")
	buildCmd.Flags().String("ld-lld", "", "ld.lld executable")
	buildCmd.Flags().String("polkatool", "", "polkatool executable")
}
