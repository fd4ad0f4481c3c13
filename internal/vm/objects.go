package vm

import (
	"fmt"
	"hash/fnv"
)

// ObjType discriminates heap object kinds
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
)

// Obj is the common interface of all heap objects. Every object is
// registered with the owning VM's object list at birth and released in bulk
// at teardown.
type Obj interface {
	Type() ObjType
	Inspect() string
}

// ObjString is an immutable interned string. Two ObjStrings with the same
// text are always the same pointer.
type ObjString struct {
	Chars string
	Hash  uint32 // FNV-1a of Chars, precomputed at construction
}

func (s *ObjString) Type() ObjType   { return ObjTypeString }
func (s *ObjString) Inspect() string { return s.Chars }

// ObjFunction represents a function compiled to bytecode
type ObjFunction struct {
	Arity int
	Chunk *Chunk
	Name  *ObjString // nil for the top-level script
}

func (f *ObjFunction) Type() ObjType { return ObjTypeFunction }
func (f *ObjFunction) Inspect() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is a host function callable from Lox code
type NativeFn func(argCount int, args []Value) Value

// ObjNative wraps a host function
type ObjNative struct {
	Fn   NativeFn
	Name string
}

func (n *ObjNative) Type() ObjType   { return ObjTypeNative }
func (n *ObjNative) Inspect() string { return "<native fn>" }

// hashString computes the 32-bit FNV-1a hash used by the intern table
func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
