package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"movepvm/internal/buildpipeline"
	"movepvm/internal/dispatch"
	"movepvm/internal/sbc"
	"movepvm/internal/testkit"
	"movepvm/internal/vm"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, manifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	path := writeManifest(t, `# vault contract
[package]
name = "vault"

[build]
input = "build/vault.mpk"
jobs = 4
polkatool = "tools/polkatool"
keep_tmp = true
`)
	cfg, err := loadProjectConfig(path)
	if err != nil {
		t.Fatalf("loadProjectConfig: %v", err)
	}
	if cfg.Package.Name != "vault" || cfg.Build.Input != "build/vault.mpk" || cfg.Build.Jobs != 4 || !cfg.Build.KeepTmp {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Build.Profile != defaultBuildProfile {
		t.Fatalf("profile = %q, want default", cfg.Build.Profile)
	}

	m := &projectManifest{Path: path, Root: filepath.Dir(path), Config: cfg}
	req := buildpipeline.BuildRequest{}
	applyManifest(&req, m)
	if req.Tools.Polkatool != filepath.Join(m.Root, "tools", "polkatool") {
		t.Fatalf("polkatool = %q", req.Tools.Polkatool)
	}
	if req.Tools.Clang != "" || req.Debug || !req.KeepTmp || req.Jobs != 4 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.OutputPath != filepath.Join(m.Root, "target", "vault.polkavm") {
		t.Fatalf("output = %q", req.OutputPath)
	}
}

func TestLoadProjectConfig_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no package", "[build]\ninput = \"a.mpk\"\n", "missing [package]"},
		{"no name", "[package]\n[build]\ninput = \"a.mpk\"\n", "missing [package].name"},
		{"no build", "[package]\nname = \"x\"\n", "missing [build]"},
		{"no input", "[package]\nname = \"x\"\n[build]\njobs = 1\n", "missing [build].input"},
		{"bad profile", "[package]\nname = \"x\"\n[build]\ninput = \"a\"\nprofile = \"fast\"\n", "profile must be debug or release"},
		{"negative jobs", "[package]\nname = \"x\"\n[build]\ninput = \"a\"\njobs = -1\n", "jobs must not be negative"},
		{"unknown key", "[package]\nname = \"x\"\n[build]\ninput = \"a\"\nlinker = \"ld\"\n", "unknown key build.linker"},
		{"bad toml", "[package\n", "failed to parse TOML"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadProjectConfig(writeManifest(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLoadProjectManifest_WalksUp(t *testing.T) {
	path := writeManifest(t, "[package]\nname = \"x\"\n[build]\ninput = \"unit.mpk\"\n")
	root := filepath.Dir(path)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	m, ok, err := loadProjectManifest(nested)
	if err != nil || !ok {
		t.Fatalf("loadProjectManifest: ok=%v err=%v", ok, err)
	}
	if _, err := m.inputPath(); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing input error, got %v", err)
	}
	if err := sbc.SaveFile(filepath.Join(root, "unit.mpk"), testkit.VaultUnit()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if p, err := m.inputPath(); err != nil || p != filepath.Join(root, "unit.mpk") {
		t.Fatalf("inputPath = %q, %v", p, err)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
	if !useProgressView(uiModeOn, false, false) || useProgressView(uiModeOff, false, false) {
		t.Fatalf("explicit modes ignored")
	}
	if useProgressView(uiModeOn, true, false) || useProgressView(uiModeOn, false, true) {
		t.Fatalf("progress view must yield to echoed commands and debug logs")
	}
}

func TestParseOrigin(t *testing.T) {
	o, err := parseOrigin("0x" + strings.Repeat("ab", 20))
	if err != nil || o[0] != 0xab || o[19] != 0xab {
		t.Fatalf("parseOrigin = %x, %v", o, err)
	}
	if o, err := parseOrigin(""); err != nil || o != ([20]byte{}) {
		t.Fatalf("empty origin = %x, %v", o, err)
	}
	if _, err := parseOrigin("0x1234"); err == nil {
		t.Fatalf("short origin accepted")
	}
	if _, err := parseOrigin("zz"); err == nil {
		t.Fatalf("bad hex accepted")
	}
}

func TestFormatPathForOutput(t *testing.T) {
	root := t.TempDir()
	if got := formatPathForOutput(root, filepath.Join(root, "target", "x.polkavm")); got != "target/x.polkavm" {
		t.Fatalf("got %q", got)
	}
	outside := filepath.Join(filepath.Dir(root), "elsewhere")
	if got := formatPathForOutput(root, outside); got != outside {
		t.Fatalf("got %q", got)
	}
}

func TestRenderSelectors(t *testing.T) {
	table, err := dispatch.Build(testkit.VaultUnit(), nil)
	if err != nil {
		t.Fatalf("dispatch.Build: %v", err)
	}
	var buf bytes.Buffer
	if err := renderSelectors(&buf, table); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "module "+testkit.VaultModule) || !strings.Contains(buf.String(), "init(&signer, u64)  8 bytes") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	if err := renderSelectorsJSON(&buf, table); err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded struct {
		Module  string        `json:"module"`
		Entries []selectorRow `json:"entries"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json: %v", err)
	}
	if decoded.Module != testkit.VaultModule || len(decoded.Entries) != len(table.Entries) {
		t.Fatalf("unexpected json %+v", decoded)
	}
}

func TestRenderSelectors_LibraryUnit(t *testing.T) {
	table, err := dispatch.Build(testkit.BoxesUnit(), nil)
	if err != nil {
		t.Fatalf("dispatch.Build: %v", err)
	}
	var buf bytes.Buffer
	if err := renderSelectors(&buf, table); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "no entry functions\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRunCommand_VaultSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.mpk")
	if err := sbc.SaveFile(path, testkit.VaultUnit()); err != nil {
		t.Fatalf("save: %v", err)
	}
	var buf bytes.Buffer
	runCmd.SetOut(&buf)
	runCmd.SetContext(context.Background())
	for name, value := range map[string]string{"call": "init 7", "origin": "0x" + strings.Repeat("01", 20)} {
		if err := runCmd.Flags().Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	if err := runCmd.Flags().Set("call", "withdraw"); err != nil {
		t.Fatalf("set call: %v", err)
	}
	if err := runCmd.Flags().Set("call", "withdraw"); err != nil {
		t.Fatalf("set call: %v", err)
	}
	err := runExecution(runCmd, []string{path})
	code, ok := vm.AbortCode(err)
	if !ok || code != 4008 {
		t.Fatalf("expected abort 4008 from the second withdraw, got %v", err)
	}
	out := buf.String()
	if strings.Count(out, "ok     ") != 2 || !strings.Contains(out, "abort  withdraw: code 4008") || !strings.Contains(out, "resources: 0") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
