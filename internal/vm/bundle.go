package vm

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// A Bundle is a compiled script in storable form: the top-level function
// with every nested function reachable from its constant pool. Strings are
// stored as plain text and re-interned on load, so a loaded program keeps
// the interning invariant in its new VM.
type Bundle struct {
	Version    int
	SourceFile string
	Main       *SerialFunction
}

// SerialFunction mirrors ObjFunction without interned pointers
type SerialFunction struct {
	Arity     int
	Name      string
	HasName   bool
	Code      []byte
	Lines     []int
	Constants []SerialValue
}

// SerialValue is a self-contained constant: nil, bool, number, string, or a
// nested function. Natives never appear in constant pools.
type SerialValue struct {
	Kind   ValueType
	Bool   bool
	Number float64
	Str    string
	Fn     *SerialFunction
}

const bundleMagic = "LOXB"
const bundleVersion = 1

// CompileBundle compiles source into a storable bundle. Compile errors have
// been reported to the error writer when ErrCompile is returned.
func (vm *VM) CompileBundle(source, sourceFile string) (*Bundle, error) {
	fn, ok := vm.compile(source)
	if !ok {
		return nil, ErrCompile
	}

	main, err := packFunction(fn)
	if err != nil {
		return nil, err
	}
	return &Bundle{Version: bundleVersion, SourceFile: sourceFile, Main: main}, nil
}

func packFunction(fn *ObjFunction) (*SerialFunction, error) {
	sf := &SerialFunction{
		Arity: fn.Arity,
		Code:  fn.Chunk.Code,
		Lines: fn.Chunk.Lines,
	}
	if fn.Name != nil {
		sf.Name = fn.Name.Chars
		sf.HasName = true
	}

	for _, c := range fn.Chunk.Constants {
		sv, err := packValue(c)
		if err != nil {
			return nil, err
		}
		sf.Constants = append(sf.Constants, sv)
	}
	return sf, nil
}

func packValue(v Value) (SerialValue, error) {
	switch v.Type {
	case ValNil:
		return SerialValue{Kind: ValNil}, nil
	case ValBool:
		return SerialValue{Kind: ValBool, Bool: v.AsBool()}, nil
	case ValNumber:
		return SerialValue{Kind: ValNumber, Number: v.AsNumber()}, nil
	case ValObj:
		switch o := v.Obj.(type) {
		case *ObjString:
			return SerialValue{Kind: ValObj, Str: o.Chars}, nil
		case *ObjFunction:
			fn, err := packFunction(o)
			if err != nil {
				return SerialValue{}, err
			}
			return SerialValue{Kind: ValObj, Fn: fn}, nil
		}
	}
	return SerialValue{}, fmt.Errorf("unbundleable constant %s", v.String())
}

// Serialize encodes the bundle with a magic prefix
func (b *Bundle) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(bundleMagic)

	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeBundle decodes data produced by Serialize
func DeserializeBundle(data []byte) (*Bundle, error) {
	if len(data) < len(bundleMagic) || string(data[:len(bundleMagic)]) != bundleMagic {
		return nil, fmt.Errorf("not a bundle: bad magic")
	}

	var b Bundle
	if err := gob.NewDecoder(bytes.NewReader(data[len(bundleMagic):])).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if b.Version != bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", b.Version)
	}
	if b.Main == nil {
		return nil, fmt.Errorf("bundle has no entry function")
	}
	return &b, nil
}

// LoadBundle rebuilds the bundle's functions as heap objects of this VM,
// re-interning every string constant
func (vm *VM) LoadBundle(b *Bundle) *ObjFunction {
	return vm.unpackFunction(b.Main)
}

func (vm *VM) unpackFunction(sf *SerialFunction) *ObjFunction {
	fn := vm.newFunction()
	fn.Arity = sf.Arity
	if sf.HasName {
		fn.Name = vm.copyString(sf.Name)
	}
	fn.Chunk.Code = sf.Code
	fn.Chunk.Lines = sf.Lines

	for _, sv := range sf.Constants {
		fn.Chunk.Constants = append(fn.Chunk.Constants, vm.unpackValue(sv))
	}
	return fn
}

func (vm *VM) unpackValue(sv SerialValue) Value {
	switch sv.Kind {
	case ValNil:
		return NilVal()
	case ValBool:
		return BoolVal(sv.Bool)
	case ValNumber:
		return NumberVal(sv.Number)
	default:
		if sv.Fn != nil {
			return ObjVal(vm.unpackFunction(sv.Fn))
		}
		return ObjVal(vm.copyString(sv.Str))
	}
}

// RunFunction executes a loaded top-level function on this VM
func (vm *VM) RunFunction(fn *ObjFunction) error {
	vm.resetStack()
	vm.push(ObjVal(fn))
	if err := vm.callFunction(fn, 0); err != nil {
		return err
	}
	return vm.run()
}
