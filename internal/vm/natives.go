package vm

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // aptos_hash::ripemd160 is part of the native set
	"golang.org/x/crypto/sha3"

	"movepvm/internal/abi"
	"movepvm/internal/natives"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// nativeFunc implements one native. A *trap result aborts with its code in
// the native's name.
type nativeFunc func(vm *VM, typeArgs []types.Type, args []*Value) ([]*Value, error)

var (
	errIndex    = &trap{code: abi.AbortIndexOutOfBounds}
	errNotEmpty = &trap{code: abi.AbortVectorNotEmpty}
)

var nativeImpls = map[string]nativeFunc{
	"0x1::signer::borrow_address": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		s := args[0].Deref()
		return []*Value{RefTo(Address(s.Addr), false)}, nil
	},

	"0x1::debug::print": func(vm *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		fmt.Fprintf(vm.opts.Out, "[debug] %s\n", args[0].Deref())
		return nil, nil
	},
	"0x1::debug::print_stack_trace": func(vm *VM, _ []types.Type, _ []*Value) ([]*Value, error) {
		fmt.Fprintf(vm.opts.Out, "[debug] stack trace:\n  %s\n", strings.Join(vm.Backtrace(), "\n  "))
		return nil, nil
	},

	"0x1::vector::empty": func(_ *VM, ta []types.Type, _ []*Value) ([]*Value, error) {
		return []*Value{Vector(ta[0])}, nil
	},
	"0x1::vector::length": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		return []*Value{Int(types.U64, uint64(len(args[0].Deref().Elems)))}, nil
	},
	"0x1::vector::borrow": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		return vectorBorrow(args, false)
	},
	"0x1::vector::borrow_mut": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		return vectorBorrow(args, true)
	},
	"0x1::vector::push_back": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		v := args[0].Deref()
		v.Elems = append(v.Elems, args[1].Clone())
		return nil, nil
	},
	"0x1::vector::pop_back": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		v := args[0].Deref()
		if len(v.Elems) == 0 {
			return nil, errIndex
		}
		last := v.Elems[len(v.Elems)-1]
		v.Elems = v.Elems[:len(v.Elems)-1]
		return []*Value{last}, nil
	},
	"0x1::vector::destroy_empty": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		if len(args[0].Deref().Elems) != 0 {
			return nil, errNotEmpty
		}
		return nil, nil
	},
	"0x1::vector::swap": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		v := args[0].Deref()
		i, j := args[1].Deref(), args[2].Deref()
		n := uint64(len(v.Elems))
		if !i.Int.IsUint64() || !j.Int.IsUint64() || i.Uint64() >= n || j.Uint64() >= n {
			return nil, errIndex
		}
		v.Elems[i.Uint64()], v.Elems[j.Uint64()] = v.Elems[j.Uint64()], v.Elems[i.Uint64()]
		return nil, nil
	},
	"0x1::vector::append": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		v := args[0].Deref()
		for _, e := range args[1].Deref().Elems {
			v.Elems = append(v.Elems, e.Clone())
		}
		return nil, nil
	},
	"0x1::vector::reverse": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		e := args[0].Deref().Elems
		for i, j := 0, len(e)-1; i < j; i, j = i+1, j-1 {
			e[i], e[j] = e[j], e[i]
		}
		return nil, nil
	},

	"0x1::string::internal_check_utf8": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		return []*Value{Bool(utf8.Valid(args[0].Deref().ByteSlice()))}, nil
	},
	"0x1::string::internal_is_char_boundary": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		s := args[0].Deref().ByteSlice()
		i := args[1].Deref()
		if !i.Int.IsUint64() || i.Uint64() > uint64(len(s)) {
			return []*Value{Bool(false)}, nil
		}
		n := int(i.Uint64())
		return []*Value{Bool(n == len(s) || utf8.RuneStart(s[n]))}, nil
	},
	"0x1::string::internal_sub_string": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		s := args[0].Deref().ByteSlice()
		i, j := args[1].Deref(), args[2].Deref()
		if !i.Int.IsUint64() || !j.Int.IsUint64() || i.Uint64() > j.Uint64() || j.Uint64() > uint64(len(s)) {
			return nil, errIndex
		}
		return []*Value{Bytes(s[i.Uint64():j.Uint64()])}, nil
	},
	"0x1::string::internal_index_of": func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		s, r := args[0].Deref().ByteSlice(), args[1].Deref().ByteSlice()
		idx := bytes.Index(s, r)
		if idx < 0 {
			idx = len(s)
		}
		return []*Value{Int(types.U64, uint64(idx))}, nil
	},

	"0x1::hash::sha2_256": hashNative(func(b []byte) []byte { s := sha256.Sum256(b); return s[:] }),
	"0x1::hash::sha3_256": hashNative(func(b []byte) []byte { s := sha3.Sum256(b); return s[:] }),
	"0x1::aptos_hash::keccak256": hashNative(func(b []byte) []byte {
		h := sha3.NewLegacyKeccak256()
		_, _ = h.Write(b)
		return h.Sum(nil)
	}),
	"0x1::aptos_hash::sha2_512":    hashNative(func(b []byte) []byte { s := sha512.Sum512(b); return s[:] }),
	"0x1::aptos_hash::sha3_512":    hashNative(func(b []byte) []byte { s := sha3.Sum512(b); return s[:] }),
	"0x1::aptos_hash::blake2b_256": hashNative(func(b []byte) []byte { s := blake2b.Sum256(b); return s[:] }),
	"0x1::aptos_hash::ripemd160": hashNative(func(b []byte) []byte {
		h := ripemd160.New()
		_, _ = h.Write(b)
		return h.Sum(nil)
	}),
}

func hashNative(sum func([]byte) []byte) nativeFunc {
	return func(_ *VM, _ []types.Type, args []*Value) ([]*Value, error) {
		return []*Value{Bytes(sum(args[0].Deref().ByteSlice()))}, nil
	}
}

func vectorBorrow(args []*Value, mutable bool) ([]*Value, error) {
	v := args[0].Deref()
	i := args[1].Deref()
	if !i.Int.IsUint64() || i.Uint64() >= uint64(len(v.Elems)) {
		return nil, errIndex
	}
	return []*Value{RefTo(v.Elems[i.Uint64()], mutable)}, nil
}

// callNative runs a native with the same support set the translator
// accepts: anything natives.Lookup rejects fails here too.
func (vm *VM) callNative(m *sbc.Module, f *sbc.Function, typeArgs []types.Type, args []*Value) ([]*Value, error) {
	b, err := natives.Lookup(m.ID(), f.Name)
	if err != nil {
		return nil, err
	}
	impl, ok := nativeImpls[b.Key()]
	if !ok {
		return nil, fmt.Errorf("native %s has no interpreter implementation", b.Key())
	}
	if len(typeArgs) < b.TypeParams {
		return nil, fmt.Errorf("native %s needs %d type arguments", b.Key(), b.TypeParams)
	}
	if len(args) != len(b.Params) {
		return nil, fmt.Errorf("native %s takes %d arguments, got %d", b.Key(), len(b.Params), len(args))
	}
	out, err := impl(vm, typeArgs, args)
	if err != nil {
		if t, ok := err.(*trap); ok {
			return nil, &Abort{Code: t.code, Module: m.ID(), Function: f.Name}
		}
		return nil, err
	}
	return out, nil
}
