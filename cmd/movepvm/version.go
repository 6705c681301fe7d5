package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"movepvm/internal/abi"
	"movepvm/internal/version"
)

type versionPayload struct {
	Tool      string   `json:"tool"`
	Version   string   `json:"version"`
	GitCommit string   `json:"git_commit,omitempty"`
	BuildDate string   `json:"build_date,omitempty"`
	Go        string   `json:"go"`
	Imports   []string `json:"host_imports,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show movepvm build metadata",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		imports, err := cmd.Flags().GetBool("imports")
		if err != nil {
			return err
		}
		switch strings.ToLower(format) {
		case "pretty":
			return renderVersionPretty(cmd.OutOrStdout(), imports)
		case "json":
			return renderVersionJSON(cmd.OutOrStdout(), imports)
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}
	},
}

func renderVersionPretty(out io.Writer, imports bool) error {
	if _, err := io.WriteString(out, version.Info(true)); err != nil {
		return err
	}
	if !imports {
		return nil
	}
	_, err := fmt.Fprintf(out, "host imports: %s\n", strings.Join(abi.AllowedImports(), ", "))
	return err
}

func renderVersionJSON(out io.Writer, imports bool) error {
	payload := versionPayload{
		Tool:      "movepvm",
		Version:   strings.TrimSpace(version.Version),
		GitCommit: strings.TrimSpace(version.GitCommit),
		BuildDate: strings.TrimSpace(version.BuildDate),
		Go:        runtime.Version(),
	}
	if imports {
		payload.Imports = abi.AllowedImports()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().Bool("imports", false, "list the host imports a blob may use")
}
