package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"movepvm/internal/driver"
	"movepvm/internal/mono"
	"movepvm/internal/pvmblob"
	"movepvm/internal/sbc"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] [unit|blob]",
	Short: "Summarize a compilation unit or a .polkavm blob",
	Long: `Print modules, functions, monomorphized instances and struct layouts
of a unit. Files ending in .polkavm are parsed as blobs instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: inspectExecution,
}

func inspectExecution(cmd *cobra.Command, args []string) error {
	showIR, err := cmd.Flags().GetBool("ir")
	if err != nil {
		return err
	}
	showInst, err := cmd.Flags().GetBool("instances")
	if err != nil {
		return err
	}
	input, _, err := resolveInput(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if strings.HasSuffix(input, ".polkavm") {
		data, err := os.ReadFile(input) // #nosec G304 -- user supplied path
		if err != nil {
			return err
		}
		blob, err := pvmblob.Parse(data)
		if err != nil {
			return err
		}
		return describeBlob(out, blob, pvmblob.Validate(blob))
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	res, err := driver.CompileFile(cmd.Context(), input, &driver.Options{MaxDiagnostics: maxDiagnostics, EnableTimings: true})
	if err != nil {
		return err
	}
	if err := describeUnit(out, res); err != nil {
		return err
	}
	if showInst {
		if err := mono.Dump(out, res.Program.Map); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(out, res.Timing.Summary()); err != nil {
		return err
	}
	if showIR {
		_, err = io.WriteString(out, res.IR)
	}
	return err
}

func describeUnit(out io.Writer, res *driver.Result) error {
	var b strings.Builder
	for _, m := range res.Unit.Modules {
		entries := 0
		for _, f := range m.Functions {
			if f.Entry {
				entries++
			}
		}
		fmt.Fprintf(&b, "module %s: %d structs, %d functions, %d entries\n", m.ID(), len(m.Structs), len(m.Functions), entries)
		for _, f := range m.Functions {
			fmt.Fprintf(&b, "  %s%s\n", functionFlags(f), f.Name)
		}
	}
	fmt.Fprintf(&b, "instances: %d, natives: %d\n", len(res.Program.Instances), len(res.Program.Natives))
	for _, st := range res.Program.Structs {
		l, err := res.Layouts.LayoutOf(st)
		if err != nil {
			return err
		}
		tag, err := res.Layouts.StructTag(st)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "struct %s size=%d align=%d tag=%s\n", st, l.Size, l.Align, tag.String()[:16])
	}
	if res.Table.Empty() {
		b.WriteString("dispatch: library unit, call rejects every selector\n")
	} else {
		fmt.Fprintf(&b, "dispatch: %s, %d selectors\n", res.Table.Module, len(res.Table.Entries))
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func functionFlags(f *sbc.Function) string {
	switch {
	case f.Entry:
		return "entry "
	case f.Native:
		return "native "
	case f.TypeParams > 0:
		return fmt.Sprintf("<%d> ", f.TypeParams)
	default:
		return ""
	}
}

func describeBlob(out io.Writer, blob *pvmblob.Blob, validateErr error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "polkavm blob v%d\n", blob.Version)
	fmt.Fprintf(&b, "memory: ro=%d rw=%d stack=%d\n", blob.Memory.RODataSize, blob.Memory.RWDataSize, blob.Memory.StackSize)
	fmt.Fprintf(&b, "code: %d bytes\n", len(blob.Code))
	fmt.Fprintf(&b, "imports: %s\n", strings.Join(blob.Imports, ", "))
	for _, e := range blob.Exports {
		fmt.Fprintf(&b, "export %s @%d\n", e.Name, e.PC)
	}
	if validateErr != nil {
		fmt.Fprintf(&b, "invalid: %v\n", validateErr)
	}
	if _, err := io.WriteString(out, b.String()); err != nil {
		return err
	}
	return validateErr
}

func init() {
	inspectCmd.Flags().Bool("ir", false, "print the generated LLVM IR")
	inspectCmd.Flags().Bool("instances", false, "print the instantiation map")
}
