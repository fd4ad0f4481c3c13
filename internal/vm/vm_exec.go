package vm

import (
	"fmt"
	"strings"
)

// run is the dispatch loop. It executes the current frame stack until the
// top-level script returns or a runtime error unwinds everything.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		code := frame.function.Chunk.Code
		hi, lo := int(code[frame.ip]), int(code[frame.ip+1])
		frame.ip += 2
		return hi<<8 | lo
	}
	readConstant := func() Value {
		return frame.function.Chunk.Constants[readByte()]
	}

	for {
		if vm.options.TraceExecution {
			vm.traceInstruction(frame)
		}

		op := Opcode(readByte())
		switch op {
		case OP_CONSTANT:
			vm.push(readConstant())

		case OP_NIL:
			vm.push(NilVal())

		case OP_TRUE:
			vm.push(BoolVal(true))

		case OP_FALSE:
			vm.push(BoolVal(false))

		case OP_POP:
			vm.pop()

		case OP_GET_LOCAL:
			slot := int(readByte())
			vm.push(vm.stack[frame.base+slot])

		case OP_SET_LOCAL:
			// Assignment is an expression; the value stays on the stack.
			slot := int(readByte())
			vm.stack[frame.base+slot] = vm.peek(0)

		case OP_DEFINE_GLOBAL:
			name := readConstant().AsString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()

		case OP_GET_GLOBAL:
			name := readConstant().AsString()
			value, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(value)

		case OP_SET_GLOBAL:
			name := readConstant().AsString()
			if vm.globals.Set(name, vm.peek(0)) {
				// Assignment must not create the variable.
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case OP_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.Equals(b)))

		case OP_GREATER:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.AsNumber() > b.AsNumber()))

		case OP_LESS:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.AsNumber() < b.AsNumber()))

		case OP_ADD:
			switch {
			case vm.peek(0).IsString() && vm.peek(1).IsString():
				b := vm.pop().AsString()
				a := vm.pop().AsString()
				var sb strings.Builder
				sb.Grow(len(a.Chars) + len(b.Chars))
				sb.WriteString(a.Chars)
				sb.WriteString(b.Chars)
				vm.push(ObjVal(vm.takeString(sb.String())))
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b := vm.pop()
				a := vm.pop()
				vm.push(NumberVal(a.AsNumber() + b.AsNumber()))
			default:
				return vm.runtimeError("Operands must be two numbers or two strings.")
			}

		case OP_SUBTRACT:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop()
			a := vm.pop()
			vm.push(NumberVal(a.AsNumber() - b.AsNumber()))

		case OP_MULTIPLY:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop()
			a := vm.pop()
			vm.push(NumberVal(a.AsNumber() * b.AsNumber()))

		case OP_DIVIDE:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop()
			a := vm.pop()
			vm.push(NumberVal(a.AsNumber() / b.AsNumber()))

		case OP_NOT:
			vm.push(BoolVal(vm.pop().IsFalsey()))

		case OP_NEGATE:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(NumberVal(-vm.pop().AsNumber()))

		case OP_PRINT:
			fmt.Fprintln(vm.out, vm.pop().String())

		case OP_JUMP:
			offset := readShort()
			frame.ip += offset

		case OP_JUMP_IF_FALSE:
			// The condition stays on the stack; the compiler emits the pops.
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}

		case OP_LOOP:
			offset := readShort()
			frame.ip -= offset

		case OP_CALL:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OP_RETURN:
			result := vm.pop()
			vm.frameCount--
			if vm.frameCount == 0 {
				// Pop the top-level script function itself.
				vm.pop()
				return nil
			}

			// Discard the returning frame's window, then deliver the result.
			vm.sp = frame.base
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

// callValue dispatches a call on the callee sitting argCount slots below the
// stack top
func (vm *VM) callValue(callee Value, argCount int) error {
	if callee.IsObj() {
		switch fn := callee.Obj.(type) {
		case *ObjFunction:
			return vm.callFunction(fn, argCount)
		case *ObjNative:
			args := vm.stack[vm.sp-argCount : vm.sp]
			result := fn.Fn(argCount, args)
			// The callee and its arguments are replaced by the result.
			vm.sp -= argCount + 1
			vm.push(result)
			return nil
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

// callFunction pushes a frame whose window starts at the callee slot
func (vm *VM) callFunction(fn *ObjFunction, argCount int) error {
	if argCount != fn.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", fn.Arity, argCount)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.function = fn
	frame.ip = 0
	frame.base = vm.sp - argCount - 1
	return nil
}

// traceInstruction prints the stack and the next instruction (TraceExecution)
func (vm *VM) traceInstruction(frame *CallFrame) {
	var sb strings.Builder
	sb.WriteString("          ")
	for i := 0; i < vm.sp; i++ {
		sb.WriteString("[ ")
		sb.WriteString(vm.stack[i].String())
		sb.WriteString(" ]")
	}
	sb.WriteByte('\n')
	disassembleInstruction(&sb, frame.function.Chunk, frame.ip)
	fmt.Fprint(vm.errw, sb.String())
}
