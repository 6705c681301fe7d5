package layout

// Target describes the ABI target triple and its pointer properties.
//
// Only the PolkaVM rv64e target is implemented.
type Target struct {
	Triple     string // e.g. "riscv64-unknown-none-elf"
	DataLayout string
	CPU        string
	Features   string
	PtrSize    int // bytes
	PtrAlign   int // bytes
}

// PolkaVM is the 64-bit embedded RISC-V target PolkaVM executes.
func PolkaVM() Target {
	return Target{
		Triple:     "riscv64-unknown-none-elf",
		DataLayout: "e-m:e-p:64:64-i64:64-i128:128-n32:64-S64",
		CPU:        "generic-rv64",
		Features:   "+e,+m,+a,+c",
		PtrSize:    8,
		PtrAlign:   8,
	}
}
