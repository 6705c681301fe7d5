package dispatch

import (
	"fmt"
	"io"
	"strings"

	"fortio.org/safecast"

	"movepvm/internal/abi"
	"movepvm/internal/backend/llvm"
	"movepvm/internal/natives"
	"movepvm/internal/types"
)

// Export metadata version understood by polkatool.
const metadataVersion = 1

// Emit appends the deploy/call exports and their PolkaVM metadata to a
// module produced by llvm.EmitModule.
func Emit(w io.Writer, t *Table, mod *llvm.Module) error {
	var b strings.Builder
	b.WriteString("; dispatch\n")
	b.WriteString("define void @deploy() {\nentry:\n  ret void\n}\n\n")
	if err := emitCall(&b, t, mod); err != nil {
		return err
	}
	if err := emitExportMetadata(&b, []string{abi.ExportCall, abi.ExportDeploy}); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func emitCall(b *strings.Builder, t *Table, mod *llvm.Module) error {
	var allocas, body strings.Builder
	tmp := 0
	next := func() string {
		tmp++
		return fmt.Sprintf("%%d%d", tmp)
	}

	allocas.WriteString("  %signer = alloca [32 x i8]\n  %sel = alloca i32\n")
	fmt.Fprintf(&body, "  %%size = call i64 @%s()\n", natives.SymCallDataSize)
	fmt.Fprintf(&body, "  %%short = icmp ult i64 %%size, %d\n", abi.SelectorSize)
	body.WriteString("  br i1 %short, label %bad.calldata, label %read\n")
	body.WriteString("read:\n")
	fmt.Fprintf(&body, "  call void @%s(ptr %%sel, i64 0, i64 %d)\n", natives.SymCallDataCopy, abi.SelectorSize)
	body.WriteString("  %selector = load i32, ptr %sel\n")
	body.WriteString("  switch i32 %selector, label %unknown [\n")
	for i, e := range t.Entries {
		fmt.Fprintf(&body, "    i32 %d, label %%entry%d\n", e.Value(), i)
	}
	body.WriteString("  ]\n")

	for i, e := range t.Entries {
		sym, ok := mod.Symbol(e.Key)
		if !ok {
			return fmt.Errorf("entry %s has no translated function", e.Key)
		}
		if len(sym.Params) != len(e.Params) {
			return fmt.Errorf("entry %s: %d parameters, symbol takes %d", e.Key, len(e.Params), len(sym.Params))
		}
		fmt.Fprintf(&body, "entry%d:\n", i)
		need := abi.SelectorSize + e.ArgsSize()
		enough := next()
		fmt.Fprintf(&body, "  %s = icmp uge i64 %%size, %d\n", enough, need)
		fmt.Fprintf(&body, "  br i1 %s, label %%decode%d, label %%bad.calldata\n", enough, i)
		fmt.Fprintf(&body, "decode%d:\n", i)

		var argv []string
		params := e.Params
		if e.Signer {
			fmt.Fprintf(&body, "  call void @%s(ptr %%signer)\n", natives.SymCallerSigner)
			if params[0].Kind == types.KindReference {
				argv = append(argv, "ptr %signer")
			} else {
				v := next()
				fmt.Fprintf(&body, "  %s = load [32 x i8], ptr %%signer\n", v)
				argv = append(argv, "[32 x i8] "+v)
			}
			params = params[1:]
		}
		off := abi.SelectorSize
		for j, p := range params {
			slot := fmt.Sprintf("%%arg%d.%d", i, j)
			size := ArgSize(p)
			storeTy := "[32 x i8]"
			if p.Kind != types.KindAddress {
				storeTy = fmt.Sprintf("i%d", size*8)
			}
			fmt.Fprintf(&allocas, "  %s = alloca %s\n", slot, storeTy)
			off64, err := safecast.Conv[uint64](off)
			if err != nil {
				return err
			}
			fmt.Fprintf(&body, "  call void @%s(ptr %s, i64 %d, i64 %d)\n", natives.SymCallDataCopy, slot, off64, size)
			v := next()
			fmt.Fprintf(&body, "  %s = load %s, ptr %s\n", v, storeTy, slot)
			if p.Kind == types.KindBool {
				flag := next()
				fmt.Fprintf(&body, "  %s = icmp ne i8 %s, 0\n", flag, v)
				v = flag
			}
			argv = append(argv, sym.Params[len(argv)]+" "+v)
			off += size
		}
		fmt.Fprintf(&body, "  call %s @%s(%s)\n", sym.Ret, sym.Name, strings.Join(argv, ", "))
		body.WriteString("  ret void\n")
	}

	body.WriteString("unknown:\n")
	fmt.Fprintf(&body, "  call void @%s(i64 %d)\n  unreachable\n", natives.SymAbort, abi.AbortUnknownSelector)
	body.WriteString("bad.calldata:\n")
	fmt.Fprintf(&body, "  call void @%s(i64 %d)\n  unreachable\n", natives.SymAbort, abi.AbortBadCallData)

	b.WriteString("define void @call() {\nentry:\n")
	b.WriteString(allocas.String())
	b.WriteString(body.String())
	b.WriteString("}\n\n")
	return nil
}

// emitExportMetadata writes one packed metadata record per export into
// .polkavm_metadata and points .polkavm_exports at it.
func emitExportMetadata(b *strings.Builder, exports []string) error {
	used := make([]string, 0, len(exports))
	for _, name := range exports {
		nameSym := "movepvm_export_name_" + name
		metaSym := "movepvm_export_meta_" + name
		fmt.Fprintf(b, "@%s = private unnamed_addr constant [%d x i8] c\"%s\", align 1\n", nameSym, len(name), name)
		nameLen, err := safecast.Conv[uint8](len(name))
		if err != nil {
			return err
		}
		header := []byte{metadataVersion, 0, 0, 0, 0, nameLen, 0, 0, 0}
		parts := make([]string, len(header))
		for i, c := range header {
			parts[i] = fmt.Sprintf("i8 %d", c)
		}
		// version, flags (u32), name length (u32) | name ptr | input regs, output regs
		fmt.Fprintf(b, "@%s = internal constant <{ [9 x i8], ptr, [2 x i8] }> <{ [9 x i8] [%s], ptr @%s, [2 x i8] [i8 0, i8 0] }>, section \".polkavm_metadata\", align 1\n",
			metaSym, strings.Join(parts, ", "), nameSym)
		used = append(used, "ptr @"+metaSym)
	}
	fmt.Fprintf(b, "@llvm.used = appending global [%d x ptr] [%s], section \"llvm.metadata\"\n\n", len(used), strings.Join(used, ", "))
	for _, name := range exports {
		b.WriteString("module asm \".pushsection .polkavm_exports,\\22R\\22,@note\"\n")
		fmt.Fprintf(b, "module asm \".byte %d\"\n", metadataVersion)
		fmt.Fprintf(b, "module asm \".8byte movepvm_export_meta_%s\"\n", name)
		fmt.Fprintf(b, "module asm \".8byte %s\"\n", name)
		b.WriteString("module asm \".popsection\"\n")
	}
	return nil
}
