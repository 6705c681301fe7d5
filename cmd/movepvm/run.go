package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"movepvm/internal/abi"
	"movepvm/internal/sbc"
	"movepvm/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [unit]",
	Short: "Execute entry functions on the reference VM",
	Long: `Execute a sequence of entry calls against one in-memory store.
Each --call is "name arg..."; arguments are decimal or 0x-prefixed integers,
true/false, or hex addresses. --raw passes hex call data as is.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecution,
}

func runExecution(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	calls, err := flags.GetStringArray("call")
	if err != nil {
		return err
	}
	raws, err := flags.GetStringArray("raw")
	if err != nil {
		return err
	}
	originHex, err := flags.GetString("origin")
	if err != nil {
		return err
	}
	maxSteps, err := flags.GetUint64("max-steps")
	if err != nil {
		return err
	}
	keepGoing, err := flags.GetBool("keep-going")
	if err != nil {
		return err
	}
	if len(calls) == 0 && len(raws) == 0 {
		return errors.New("nothing to run: pass --call or --raw")
	}
	origin, err := parseOrigin(originHex)
	if err != nil {
		return err
	}

	input, _, err := resolveInput(args)
	if err != nil {
		return err
	}
	u, err := sbc.LoadFile(input)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	machine := vm.New(u, nil, vm.Options{MaxSteps: maxSteps, Out: out})
	table, err := machine.Table()
	if err != nil {
		return err
	}

	payloads := make([][]byte, 0, len(calls)+len(raws))
	labels := make([]string, 0, len(calls)+len(raws))
	for _, c := range calls {
		fields := strings.Fields(c)
		if len(fields) == 0 {
			return errors.New("empty --call")
		}
		entry, ok := table.Entry(fields[0])
		switch {
		case !ok && table.Empty():
			return fmt.Errorf("no entry function %q: the unit declares none", fields[0])
		case !ok:
			return fmt.Errorf("no entry function %q in %s", fields[0], table.Module)
		}
		data, err := entry.CallData(fields[1:])
		if err != nil {
			return err
		}
		payloads = append(payloads, data)
		labels = append(labels, c)
	}
	for _, r := range raws {
		data, err := hex.DecodeString(strings.TrimPrefix(r, "0x"))
		if err != nil {
			return fmt.Errorf("--raw %q: %w", r, err)
		}
		payloads = append(payloads, data)
		labels = append(labels, "raw 0x"+hex.EncodeToString(data))
	}

	var failed error
	for i, data := range payloads {
		err := machine.Dispatch(cmd.Context(), data, origin)
		reportCall(out, labels[i], err)
		if err == nil {
			continue
		}
		if _, isAbort := vm.AbortCode(err); !isAbort {
			return err
		}
		if failed == nil {
			failed = err
		}
		if !keepGoing {
			break
		}
	}
	if _, err := fmt.Fprintf(out, "resources: %d\n", machine.Store().Len()); err != nil {
		return err
	}
	return failed
}

func reportCall(out io.Writer, label string, err error) {
	if err == nil {
		_, _ = fmt.Fprintf(out, "ok     %s\n", label)
		return
	}
	code, _ := vm.AbortCode(err)
	_, _ = fmt.Fprintf(out, "abort  %s: code %d (%v)\n", label, code, err)
}

func parseOrigin(s string) ([abi.OriginSize]byte, error) {
	var origin [abi.OriginSize]byte
	if s == "" {
		return origin, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return origin, fmt.Errorf("invalid --origin: %w", err)
	}
	if len(raw) != abi.OriginSize {
		return origin, fmt.Errorf("invalid --origin: want %d bytes, got %d", abi.OriginSize, len(raw))
	}
	copy(origin[:], raw)
	return origin, nil
}

func init() {
	runCmd.Flags().StringArray("call", nil, `entry call "name arg..." (repeatable)`)
	runCmd.Flags().StringArray("raw", nil, "hex call data (repeatable, runs after --call)")
	runCmd.Flags().String("origin", "", "20-byte caller address in hex")
	runCmd.Flags().Uint64("max-steps", 0, "instruction limit per call (0 = unlimited)")
	runCmd.Flags().Bool("keep-going", false, "continue after an abort")
}
