// Package wasmtest assembles small WebAssembly modules for host-side tests.
//
// Go guests need a wasip1 toolchain run to produce a binary, so host tests use modules
// assembled here instead: they import the env callbacks, export allocate/deallocate/run_e,
// and behave in one narrowly defined way each (echo, fail, misbehave).
package wasmtest

import (
	"bytes"
	"encoding/binary"
)

// ValType is a WebAssembly value type.
type ValType byte

// Value types used by the Runnable ABI.
const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// FuncType is a WebAssembly function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) encode() []byte {
	out := []byte{0x60}
	out = appendVec(out, ft.Params)
	return appendVec(out, ft.Results)
}

type importEntry struct {
	module, name string
	typeIdx      uint32
}

type funcEntry struct {
	export  string
	locals  []ValType
	body    []byte
	typeIdx uint32
}

type dataEntry struct {
	bytes  []byte
	offset uint32
}

// Builder accumulates the sections of a module. Imports must be declared before any
// function, since they occupy the low function indices.
type Builder struct {
	types    [][]byte
	imports  []importEntry
	funcs    []funcEntry
	data     []dataEntry
	globals  []int32
	memPages uint32
}

// NewBuilder returns a Builder for a module with one exported memory of memPages pages.
func NewBuilder(memPages uint32) *Builder {
	return &Builder{memPages: memPages}
}

func (b *Builder) typeIndex(ft FuncType) uint32 {
	enc := ft.encode()
	for i, t := range b.types {
		if bytes.Equal(t, enc) {
			return uint32(i) //nolint:gosec // G115: tiny test modules
		}
	}
	b.types = append(b.types, enc)
	return uint32(len(b.types) - 1) //nolint:gosec // G115: tiny test modules
}

// Import declares an imported function and returns its function index.
func (b *Builder) Import(module, name string, ft FuncType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	b.imports = append(b.imports, importEntry{module: module, name: name, typeIdx: b.typeIndex(ft)})
	return uint32(len(b.imports) - 1) //nolint:gosec // G115: tiny test modules
}

// Func defines a function, exported as export unless it is empty, and returns its index.
// The body is the concatenation of code; the trailing end opcode is added here.
func (b *Builder) Func(export string, ft FuncType, locals []ValType, code ...[]byte) uint32 {
	b.funcs = append(b.funcs, funcEntry{
		export:  export,
		typeIdx: b.typeIndex(ft),
		locals:  locals,
		body:    append(bytes.Join(code, nil), End...),
	})
	return uint32(len(b.imports) + len(b.funcs) - 1) //nolint:gosec // G115: tiny test modules
}

// Global defines a mutable i32 global and returns its index.
func (b *Builder) Global(init int32) uint32 {
	b.globals = append(b.globals, init)
	return uint32(len(b.globals) - 1) //nolint:gosec // G115: tiny test modules
}

// Data places data at offset in memory when the module is instantiated.
func (b *Builder) Data(offset uint32, data []byte) {
	b.data = append(b.data, dataEntry{offset: offset, bytes: data})
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var sec []byte
	sec = appendU32(nil, uint32(len(b.types))) //nolint:gosec // G115: tiny test modules
	for _, t := range b.types {
		sec = append(sec, t...)
	}
	out = appendSection(out, 1, sec)

	if len(b.imports) > 0 {
		sec = appendU32(nil, uint32(len(b.imports))) //nolint:gosec // G115: tiny test modules
		for _, imp := range b.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, 0x00)
			sec = appendU32(sec, imp.typeIdx)
		}
		out = appendSection(out, 2, sec)
	}

	sec = appendU32(nil, uint32(len(b.funcs))) //nolint:gosec // G115: tiny test modules
	for _, f := range b.funcs {
		sec = appendU32(sec, f.typeIdx)
	}
	out = appendSection(out, 3, sec)

	sec = appendU32([]byte{0x01, 0x00}, b.memPages)
	out = appendSection(out, 5, sec)

	if len(b.globals) > 0 {
		sec = appendU32(nil, uint32(len(b.globals))) //nolint:gosec // G115: tiny test modules
		for _, g := range b.globals {
			sec = append(sec, byte(I32), 0x01)
			sec = append(sec, I32Const(g)...)
			sec = append(sec, End...)
		}
		out = appendSection(out, 6, sec)
	}

	var exports [][]byte
	exports = append(exports, append(appendName(nil, "memory"), 0x02, 0x00))
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		e := appendName(nil, f.export)
		e = append(e, 0x00)
		exports = append(exports, appendU32(e, uint32(len(b.imports)+i))) //nolint:gosec // G115: tiny test modules
	}
	sec = appendU32(nil, uint32(len(exports))) //nolint:gosec // G115: tiny test modules
	for _, e := range exports {
		sec = append(sec, e...)
	}
	out = appendSection(out, 7, sec)

	sec = appendU32(nil, uint32(len(b.funcs))) //nolint:gosec // G115: tiny test modules
	for _, f := range b.funcs {
		fn := appendU32(nil, uint32(len(f.locals))) //nolint:gosec // G115: tiny test modules
		for _, l := range f.locals {
			fn = append(fn, 0x01, byte(l))
		}
		fn = append(fn, f.body...)
		sec = appendU32(sec, uint32(len(fn))) //nolint:gosec // G115: tiny test modules
		sec = append(sec, fn...)
	}
	out = appendSection(out, 10, sec)

	if len(b.data) > 0 {
		sec = appendU32(nil, uint32(len(b.data))) //nolint:gosec // G115: tiny test modules
		for _, d := range b.data {
			sec = append(sec, 0x00)
			sec = append(sec, I32Const(int32(d.offset))...) //nolint:gosec // G115: offsets are small
			sec = append(sec, End...)
			sec = appendU32(sec, uint32(len(d.bytes))) //nolint:gosec // G115: tiny test modules
			sec = append(sec, d.bytes...)
		}
		out = appendSection(out, 11, sec)
	}

	return out
}

// Instructions.
var (
	End         = []byte{0x0b}
	Unreachable = []byte{0x00}
	I32Add      = []byte{0x6a}
	// MemoryCopy pops dst, src and n.
	MemoryCopy = []byte{0xfc, 0x0a, 0x00, 0x00}
	// SpinForever is an infinite loop.
	SpinForever = []byte{0x03, 0x40, 0x0c, 0x00, 0x0b}
)

// LocalGet pushes local i.
func LocalGet(i uint32) []byte { return appendU32([]byte{0x20}, i) }

// LocalSet pops into local i.
func LocalSet(i uint32) []byte { return appendU32([]byte{0x21}, i) }

// GlobalGet pushes global i.
func GlobalGet(i uint32) []byte { return appendU32([]byte{0x23}, i) }

// GlobalSet pops into global i.
func GlobalSet(i uint32) []byte { return appendU32([]byte{0x24}, i) }

// Call calls function fn.
func Call(fn uint32) []byte { return appendU32([]byte{0x10}, fn) }

// I32Const pushes v.
func I32Const(v int32) []byte { return appendS64([]byte{0x41}, int64(v)) }

// I64Const pushes v.
func I64Const(v int64) []byte { return appendS64([]byte{0x42}, v) }

func appendU32(out []byte, v uint32) []byte {
	return binary.AppendUvarint(out, uint64(v))
}

// appendS64 appends v in signed LEB128.
func appendS64(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func appendName(out []byte, name string) []byte {
	out = appendU32(out, uint32(len(name))) //nolint:gosec // G115: tiny test modules
	return append(out, name...)
}

func appendVec(out []byte, types []ValType) []byte {
	out = appendU32(out, uint32(len(types))) //nolint:gosec // G115: tiny test modules
	for _, t := range types {
		out = append(out, byte(t))
	}
	return out
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(payload))) //nolint:gosec // G115: tiny test modules
	return append(out, payload...)
}
