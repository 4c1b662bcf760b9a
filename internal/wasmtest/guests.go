package wasmtest

import "github.com/reglet-dev/runnable-sdk/internal/abi"

// HeapBase is where the bump allocator of every Guest starts handing out memory.
// Static data (messages) lives below it.
const HeapBase = 1024

// MemoryPages is the initial memory of every Guest (1 MiB).
const MemoryPages = 16

var (
	runESig         = FuncType{Params: []ValType{I32, I32, I32}}
	returnErrorSig  = FuncType{Params: []ValType{I32, I32, I32, I32}}
	allocateSig     = FuncType{Params: []ValType{I32}, Results: []ValType{I32}}
	deallocateSig   = FuncType{Params: []ValType{I32, I32}}
	logMessageSig   = FuncType{Params: []ValType{I64}}
	runELocalsInput = uint32(0)
	runELocalsSize  = uint32(1)
	runELocalsIdent = uint32(2)
	runELocalsOut   = uint32(3)
)

// Guest is a module skeleton with the Runnable imports and a bump allocator. Its
// deallocate export accepts and ignores every region.
type Guest struct {
	b *Builder

	ReturnResult uint32
	ReturnError  uint32
	LogMessage   uint32
	Allocate     uint32
	Deallocate   uint32
}

// NewGuest returns the skeleton. run_e still has to be added with RunE.
func NewGuest() *Guest {
	g := &Guest{b: NewBuilder(MemoryPages)}
	g.ReturnResult = g.b.Import("env", "return_result", runESig)
	g.ReturnError = g.b.Import("env", "return_error", returnErrorSig)
	g.LogMessage = g.b.Import("env", "log_message", logMessageSig)

	heap := g.b.Global(HeapBase)
	g.Allocate = g.b.Func("allocate", allocateSig, []ValType{I32},
		GlobalGet(heap), LocalSet(1),
		GlobalGet(heap), LocalGet(0), I32Add, GlobalSet(heap),
		LocalGet(1),
	)
	g.Deallocate = g.b.Func("deallocate", deallocateSig, nil)
	return g
}

// RunE adds the run_e export with the given locals (beyond the three parameters) and body.
func (g *Guest) RunE(locals []ValType, code ...[]byte) *Guest {
	g.b.Func("run_e", runESig, locals, code...)
	return g
}

// Data places static data, which must fit below HeapBase.
func (g *Guest) Data(offset uint32, data []byte) *Guest {
	if int(offset)+len(data) > HeapBase {
		panic("wasmtest: static data overlaps the heap")
	}
	g.b.Data(offset, data)
	return g
}

// Bytes encodes the module.
func (g *Guest) Bytes() []byte {
	return g.b.Bytes()
}

// copyInput copies the input into a fresh allocation held in the out local.
func (g *Guest) copyInput() []byte {
	return concat(
		LocalGet(runELocalsSize), Call(g.Allocate), LocalSet(runELocalsOut),
		LocalGet(runELocalsOut), LocalGet(runELocalsInput), LocalGet(runELocalsSize), MemoryCopy,
	)
}

// returnCopy reports the out local as the result, correlated with identCode.
func (g *Guest) returnCopy(identCode []byte) []byte {
	return concat(LocalGet(runELocalsOut), LocalGet(runELocalsSize), identCode, Call(g.ReturnResult))
}

// Echo returns its input as the success payload.
func Echo() []byte {
	g := NewGuest()
	return g.RunE([]ValType{I32}, g.copyInput(), g.returnCopy(LocalGet(runELocalsIdent))).Bytes()
}

// Fail reports a failure with the given code and message.
func Fail(code int32, msg string) []byte {
	const msgAt = 16
	g := NewGuest().Data(msgAt, []byte(msg))
	return g.RunE(nil,
		I32Const(code), I32Const(msgAt), I32Const(int32(len(msg))), LocalGet(runELocalsIdent), Call(g.ReturnError), //nolint:gosec // G115: short messages
	).Bytes()
}

// WrongIdent echoes its input but correlates the callback with ident+1.
func WrongIdent() []byte {
	g := NewGuest()
	return g.RunE([]ValType{I32}, g.copyInput(),
		g.returnCopy(concat(LocalGet(runELocalsIdent), I32Const(1), I32Add)),
	).Bytes()
}

// Silent returns from run_e without any callback.
func Silent() []byte {
	return NewGuest().RunE(nil).Bytes()
}

// DoubleCallback echoes its input twice.
func DoubleCallback() []byte {
	g := NewGuest()
	ret := g.returnCopy(LocalGet(runELocalsIdent))
	return g.RunE([]ValType{I32}, g.copyInput(), ret, ret).Bytes()
}

// Trap hits unreachable inside run_e.
func Trap() []byte {
	return NewGuest().RunE(nil, Unreachable).Bytes()
}

// Spin never returns from run_e.
func Spin() []byte {
	return NewGuest().RunE(nil, SpinForever).Bytes()
}

// OutOfBounds reports a success payload that lies outside its memory.
func OutOfBounds() []byte {
	g := NewGuest()
	return g.RunE(nil,
		I32Const(-65536), I32Const(64), LocalGet(runELocalsIdent), Call(g.ReturnResult),
	).Bytes()
}

// LogThenEcho sends record (a JSON log record) through log_message, then echoes its input.
func LogThenEcho(record string) []byte {
	const recAt = 16
	g := NewGuest().Data(recAt, []byte(record))
	packed := abi.PackPtrLen(recAt, uint32(len(record))) //nolint:gosec // G115: short records
	return g.RunE([]ValType{I32},
		I64Const(int64(packed)), Call(g.LogMessage), //nolint:gosec // G115: bit pattern is preserved
		g.copyInput(), g.returnCopy(LocalGet(runELocalsIdent)),
	).Bytes()
}

// WithoutRunE has the memory exports but no run_e.
func WithoutRunE() []byte {
	return NewGuest().Bytes()
}

func concat(code ...[]byte) []byte {
	var out []byte
	for _, c := range code {
		out = append(out, c...)
	}
	return out
}
