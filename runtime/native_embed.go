// Package runtimeembed provides the embedded guest runtime sources that the
// linking pipeline compiles for the PolkaVM target.
package runtimeembed

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

// Root is the directory of the sources inside NativeRuntimeFS.
const Root = "native"

//go:embed native/*.c native/*.h
var nativeRuntimeFS embed.FS

// NativeRuntimeFS exposes embedded runtime sources for LLVM builds.
func NativeRuntimeFS() fs.FS {
	return nativeRuntimeFS
}

// Sources lists the translation units (.c files) in compile order.
func Sources() []string {
	entries, err := fs.ReadDir(nativeRuntimeFS, Root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".c") {
			out = append(out, Root+"/"+e.Name())
		}
	}
	sort.Strings(out)
	return out
}
