package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Sentinel errors distinguishing the two failure phases. Detailed
// diagnostics go to the VM's error writer; callers map these to exit codes.
var ErrCompile = errors.New("compile error")
var ErrRuntime = errors.New("runtime error")

// Stack geometry. Both stacks are allocated once and never grow.
const (
	FramesMax = 64
	StackMax  = FramesMax * 256
)

// CallFrame represents a single ongoing function call
type CallFrame struct {
	function *ObjFunction
	ip       int // Instruction pointer within this frame's chunk
	base     int // Where this frame's window starts in the value stack;
	// slot 0 holds the callee, slots 1..arity the arguments
}

// Options control debug output
type Options struct {
	// PrintCode disassembles each function as its compilation finishes
	PrintCode bool
	// TraceExecution disassembles each instruction as it executes
	TraceExecution bool
}

// VM is the virtual machine that executes bytecode. It owns every runtime
// table and every heap object; a single VM must only ever be driven from one
// goroutine.
type VM struct {
	stack []Value
	sp    int // Stack pointer (points to next free slot)

	frames     []CallFrame
	frameCount int

	globals *Table // Global variables, keyed by interned name
	strings *Table // Intern table: every live ObjString, value nil

	// All heap objects, registered at birth and released together by Free
	objects []Obj

	started time.Time // clock() epoch

	out     io.Writer
	errw    io.Writer
	options Options
}

// New creates a VM with empty state, writing to stdout/stderr
func New() *VM {
	return &VM{
		stack:   make([]Value, StackMax),
		frames:  make([]CallFrame, FramesMax),
		globals: NewTable(),
		strings: NewTable(),
		started: time.Now(),
		out:     os.Stdout,
		errw:    os.Stderr,
	}
}

// SetOutput redirects the print statement's output
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetErrorOutput redirects compile and runtime diagnostics
func (vm *VM) SetErrorOutput(w io.Writer) {
	vm.errw = w
}

// SetOptions replaces the debug options
func (vm *VM) SetOptions(opts Options) {
	vm.options = opts
}

// Free releases every heap object and runtime table. The VM is unusable
// afterwards.
func (vm *VM) Free() {
	vm.objects = nil
	vm.globals.Free()
	vm.strings.Free()
	vm.resetStack()
}

func (vm *VM) resetStack() {
	vm.sp = 0
	vm.frameCount = 0
}

// Object allocation. Every constructor registers the object with the heap
// list so teardown can release everything in one walk.

func (vm *VM) registerObject(o Obj) {
	vm.objects = append(vm.objects, o)
}

// copyString interns chars, returning the existing object when the text is
// already known
func (vm *VM) copyString(chars string) *ObjString {
	hash := hashString(chars)
	if interned := vm.strings.FindString(chars, hash); interned != nil {
		return interned
	}
	return vm.allocateString(chars, hash)
}

// takeString is copyString for a buffer the caller already owns, e.g. the
// result of concatenation. Go strings are immutable so no transfer happens,
// but the intern check still avoids registering a duplicate object.
func (vm *VM) takeString(chars string) *ObjString {
	return vm.copyString(chars)
}

func (vm *VM) allocateString(chars string, hash uint32) *ObjString {
	s := &ObjString{Chars: chars, Hash: hash}
	vm.strings.Set(s, NilVal())
	vm.registerObject(s)
	return s
}

// newFunction constructs an empty function object owned by this VM
func (vm *VM) newFunction() *ObjFunction {
	f := &ObjFunction{Chunk: NewChunk()}
	vm.registerObject(f)
	return f
}

// DefineNative installs a host function under name in the globals table
func (vm *VM) DefineNative(name string, fn NativeFn) {
	n := &ObjNative{Fn: fn, Name: name}
	vm.registerObject(n)
	vm.globals.Set(vm.copyString(name), ObjVal(n))
}

// RegisterBuiltins installs the default native functions
func (vm *VM) RegisterBuiltins() {
	vm.DefineNative("clock", func(argCount int, args []Value) Value {
		return NumberVal(time.Since(vm.started).Seconds())
	})
}

// Interpret compiles and runs source. It returns nil on success, ErrCompile
// when compilation failed, and an error wrapping ErrRuntime when execution
// aborted. Diagnostics have already been written to the error writer in both
// failure cases.
func (vm *VM) Interpret(source string) error {
	fn, ok := vm.compile(source)
	if !ok {
		return ErrCompile
	}

	vm.resetStack()
	vm.push(ObjVal(fn))
	if err := vm.callFunction(fn, 0); err != nil {
		return err
	}

	return vm.run()
}

// Stack operations

func (vm *VM) push(value Value) {
	vm.stack[vm.sp] = value
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// runtimeError reports a formatted message followed by the call stack, then
// resets both stacks. Frames print innermost first; the line is the one of
// the instruction that just executed.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	fmt.Fprintf(vm.errw, format, args...)
	fmt.Fprintln(vm.errw)

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.function
		line := fn.Chunk.Lines[frame.ip-1]
		if fn.Name == nil {
			fmt.Fprintf(vm.errw, "[line %d] in script\n", line)
		} else {
			fmt.Fprintf(vm.errw, "[line %d] in %s()\n", line, fn.Name.Chars)
		}
	}

	vm.resetStack()
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrRuntime}, args...)...)
}
