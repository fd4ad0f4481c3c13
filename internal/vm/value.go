package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType identifies the variant stored in a Value
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj // Heap object (string, function, native)
)

// Value is a stack-allocated tagged union. Primitives (nil, bool, number)
// live entirely in the struct; only ValObj carries a heap pointer.
type Value struct {
	Type ValueType
	Data uint64 // float64 bits or bool (0/1)
	Obj  Obj    // Heap object when Type == ValObj
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func NumberVal(v float64) Value {
	return Value{Type: ValNumber, Data: math.Float64bits(v)}
}

func ObjVal(o Obj) Value {
	return Value{Type: ValObj, Obj: o}
}

// Accessors

func (v Value) AsBool() bool {
	return v.Data == 1
}

func (v Value) AsNumber() float64 {
	return math.Float64frombits(v.Data)
}

// Type checking helpers

func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsObj() bool    { return v.Type == ValObj }

func (v Value) IsString() bool {
	if v.Type != ValObj {
		return false
	}
	_, ok := v.Obj.(*ObjString)
	return ok
}

// AsString returns the underlying ObjString; the caller must have checked
// IsString first.
func (v Value) AsString() *ObjString {
	return v.Obj.(*ObjString)
}

// IsFalsey reports whether the value is falsey: nil and false are falsey,
// everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.Type == ValNil || (v.Type == ValBool && v.Data == 0)
}

// Equals compares two values. Nil equals nil, booleans and numbers compare
// by value, objects by identity. Because strings are interned, identity
// comparison is textual comparison for strings.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValNil:
		return true
	case ValBool:
		return v.Data == other.Data
	case ValNumber:
		return v.AsNumber() == other.AsNumber()
	case ValObj:
		return v.Obj == other.Obj
	default:
		return false
	}
}

// String formats the value the way the print statement shows it
func (v Value) String() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		return fmt.Sprintf("%t", v.Data == 1)
	case ValNumber:
		return formatNumber(v.AsNumber())
	case ValObj:
		return v.Obj.Inspect()
	default:
		return "<?>"
	}
}

// formatNumber prints integral doubles without a decimal point and
// everything else in shortest form that round-trips.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
