package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"movepvm/internal/abi"
	"movepvm/internal/dispatch"
	"movepvm/internal/sbc"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors [unit]",
	Short: "List entry functions and their selectors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
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
		table, err := dispatch.Build(u, nil)
		if err != nil {
			return err
		}
		switch strings.ToLower(format) {
		case "json":
			return renderSelectorsJSON(cmd.OutOrStdout(), table)
		case "table", "":
			return renderSelectors(cmd.OutOrStdout(), table)
		default:
			return fmt.Errorf("unsupported format %q (must be table or json)", format)
		}
	},
}

type selectorRow struct {
	Selector string   `json:"selector"`
	Name     string   `json:"name"`
	Params   []string `json:"params"`
	Signer   bool     `json:"signer,omitempty"`
	ArgsSize int      `json:"args_size"`
}

func selectorRows(t *dispatch.Table) []selectorRow {
	rows := make([]selectorRow, 0, len(t.Entries))
	for _, e := range t.Entries {
		params := make([]string, 0, len(e.Params))
		for _, p := range e.Params {
			params = append(params, p.String())
		}
		rows = append(rows, selectorRow{
			Selector: abi.SelectorHex(e.Selector),
			Name:     e.Name,
			Params:   params,
			Signer:   e.Signer,
			ArgsSize: e.ArgsSize(),
		})
	}
	return rows
}

func renderSelectors(out io.Writer, t *dispatch.Table) error {
	if t.Empty() {
		_, err := fmt.Fprintln(out, "no entry functions")
		return err
	}
	if _, err := fmt.Fprintf(out, "module %s\n", t.Module); err != nil {
		return err
	}
	for _, r := range selectorRows(t) {
		if _, err := fmt.Fprintf(out, "  %s  %s(%s)  %d bytes\n", r.Selector, r.Name, strings.Join(r.Params, ", "), r.ArgsSize); err != nil {
			return err
		}
	}
	return nil
}

func renderSelectorsJSON(out io.Writer, t *dispatch.Table) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Module  string        `json:"module"`
		Entries []selectorRow `json:"entries"`
	}{t.Module, selectorRows(t)})
}

func init() {
	selectorsCmd.Flags().String("format", "table", "output format (table|json)")
}
