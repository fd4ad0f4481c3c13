package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interpret runs source on a fresh VM and returns stdout, stderr, and the
// error from Interpret.
func interpret(t *testing.T, source string) (string, string, error) {
	t.Helper()

	var out, errb bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	machine.SetErrorOutput(&errb)
	machine.RegisterBuiltins()
	err := machine.Interpret(source)
	return out.String(), errb.String(), err
}

func expectOutput(t *testing.T, source, want string) {
	t.Helper()

	out, errOut, err := interpret(t, source)
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Equal(t, want, out)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"print 1 + 2 * 3;", "7\n"},
		{"print (1 + 2) * 3;", "9\n"},
		{"print 10 - 4 / 2;", "8\n"},
		{"print -5 + 3;", "-2\n"},
		{"print 2.5 * 2;", "5\n"},
		{"print 1 / 4;", "0.25\n"},
		{"print --3;", "3\n"},
	}
	for _, tt := range tests {
		expectOutput(t, tt.source, tt.want)
	}
}

func TestComparisonAndEquality(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"print 1 < 2;", "true\n"},
		{"print 2 <= 2;", "true\n"},
		{"print 3 > 4;", "false\n"},
		{"print 4 >= 5;", "false\n"},
		{"print 1 == 1;", "true\n"},
		{"print 1 != 1;", "false\n"},
		{"print nil == nil;", "true\n"},
		{"print nil == false;", "false\n"},
		{"print \"a\" == \"a\";", "true\n"},
		{"print \"a\" == \"b\";", "false\n"},
		{"print 1 == \"1\";", "false\n"},
		{"print !true;", "false\n"},
		{"print !nil;", "true\n"},
		{"print !0;", "false\n"},
		{"print !\"\";", "false\n"},
	}
	for _, tt := range tests {
		expectOutput(t, tt.source, tt.want)
	}
}

func TestStringConcatenation(t *testing.T) {
	expectOutput(t, `var a = "hi"; var b = " there"; print a + b;`, "hi there\n")
	expectOutput(t, `print "a" + "b" + "c";`, "abc\n")
	// Interning makes concatenation results identical to literals.
	expectOutput(t, `print "a" + "b" == "ab";`, "true\n")
}

func TestGlobalVariables(t *testing.T) {
	expectOutput(t, "var x = 3; print x;", "3\n")
	expectOutput(t, "var x; print x;", "nil\n")
	expectOutput(t, "var x = 1; x = 2; print x;", "2\n")
	expectOutput(t, "var x = 1; print x = 5;", "5\n")
}

func TestLocalScoping(t *testing.T) {
	expectOutput(t, `{ var a = 1; { var a = 2; print a; } print a; }`, "2\n1\n")
	expectOutput(t, `var a = "global"; { var a = "local"; print a; } print a;`, "local\nglobal\n")
	expectOutput(t, `{ var a = 1; var b = a + 1; print b; }`, "2\n")
}

func TestLogicalOperators(t *testing.T) {
	expectOutput(t, `print nil or "v";`, "v\n")
	expectOutput(t, `print false and 3;`, "false\n")
	expectOutput(t, `print 1 and 2;`, "2\n")
	expectOutput(t, `print false or false;`, "false\n")
	// The right operand must not evaluate when short-circuited.
	expectOutput(t, `var x = 0; false and (x = 1); print x;`, "0\n")
	expectOutput(t, `var x = 0; true or (x = 1); print x;`, "0\n")
}

func TestIfStatement(t *testing.T) {
	expectOutput(t, `if (true) print "yes";`, "yes\n")
	expectOutput(t, `if (false) print "yes";`, "")
	expectOutput(t, `if (false) print "yes"; else print "no";`, "no\n")
	expectOutput(t, `if (0) print "zero is truthy";`, "zero is truthy\n")
}

func TestWhileLoop(t *testing.T) {
	expectOutput(t, `var i = 0; while (i < 3) { print i; i = i + 1; }`, "0\n1\n2\n")
	expectOutput(t, `while (false) print "never";`, "")
}

func TestForLoop(t *testing.T) {
	expectOutput(t, `for (var i = 0; i < 2; i = i + 1) print i;`, "0\n1\n")
	expectOutput(t, `var i = 5; for (; i > 3; i = i - 1) print i;`, "5\n4\n")
	expectOutput(t, `for (var i = 0; i < 3;) { print i; i = i + 1; }`, "0\n1\n2\n")
	// The loop variable is scoped to the statement.
	expectOutput(t, `var i = "outer"; for (var i = 0; i < 1; i = i + 1) {} print i;`, "outer\n")
}

func TestFunctions(t *testing.T) {
	expectOutput(t, `fun sq(n) { return n * n; } print sq(5);`, "25\n")
	expectOutput(t, `fun greet(a, b) { print a + b; } greet("hi ", "you");`, "hi you\n")
	expectOutput(t, `fun f() {} print f();`, "nil\n")
	expectOutput(t, `fun f() { return; } print f();`, "nil\n")
	expectOutput(t, `fun f() {} print f;`, "<fn f>\n")

	expectOutput(t, `
fun fib(n) {
  if (n < 2) return n;
  return fib(n - 2) + fib(n - 1);
}
print fib(10);`, "55\n")

	// Locals and arguments live in the frame's window.
	expectOutput(t, `
fun outer(a) {
  var b = a + 1;
  fun ignored() {}
  return b * 2;
}
print outer(3);`, "8\n")
}

func TestNativeFunctions(t *testing.T) {
	expectOutput(t, `print clock() >= 0;`, "true\n")
	expectOutput(t, `print clock;`, "<native fn>\n")

	var out bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	machine.SetErrorOutput(&out)
	machine.DefineNative("double", func(argCount int, args []Value) Value {
		return NumberVal(args[0].AsNumber() * 2)
	})
	require.NoError(t, machine.Interpret("print double(21);"))
	assert.Equal(t, "42\n", out.String())
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"add mixed", `print "x" + 1;`, "Operands must be two numbers or two strings."},
		{"subtract string", `print "a" - 1;`, "Operands must be numbers."},
		{"compare string", `print "a" < "b";`, "Operands must be numbers."},
		{"negate string", `print -"a";`, "Operand must be a number."},
		{"undefined get", `print missing;`, "Undefined variable 'missing'."},
		{"undefined set", `missing = 1;`, "Undefined variable 'missing'."},
		{"call number", `var f = 7; f(1);`, "Can only call functions and classes."},
		{"arity", `fun f(a) {} f(1, 2);`, "Expected 1 arguments but got 2."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := interpret(t, tt.source)
			require.ErrorIs(t, err, ErrRuntime)
			assert.Contains(t, errOut, tt.message)
			assert.Contains(t, errOut, "[line 1] in script")
		})
	}
}

func TestRuntimeErrorTrace(t *testing.T) {
	_, errOut, err := interpret(t, `
fun inner() { return 1 + nil; }
fun outer() { return inner(); }
outer();`)
	require.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, errOut, "Operands must be two numbers or two strings.")
	assert.Contains(t, errOut, "[line 2] in inner()")
	assert.Contains(t, errOut, "[line 3] in outer()")
	assert.Contains(t, errOut, "[line 4] in script")
}

func TestStackOverflow(t *testing.T) {
	_, errOut, err := interpret(t, `fun f() { f(); } f();`)
	require.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, errOut, "Stack overflow.")
}

func TestUndefinedSetDoesNotDefine(t *testing.T) {
	// A failed assignment must not leave the variable behind.
	var out, errb bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	machine.SetErrorOutput(&errb)

	require.ErrorIs(t, machine.Interpret("ghost = 1;"), ErrRuntime)
	require.ErrorIs(t, machine.Interpret("print ghost;"), ErrRuntime)
	assert.Equal(t, 2, strings.Count(errb.String(), "Undefined variable 'ghost'."))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"missing semicolon", "print 1", "Expect ';' after value."},
		{"missing expression", "print ;", "Expect expression."},
		{"invalid assignment", "1 + 2 = 3;", "Invalid assignment target."},
		{"self initializer", "{ var a = a; }", "Can't read local variable in its own initializer."},
		{"redeclaration", "{ var a = 1; var a = 2; }", "Already a variable with this name in this scope."},
		{"top-level return", "return 1;", "Can't return from top-level code."},
		{"unterminated string", `print "abc`, "Unterminated string."},
		{"stray character", "print 1 @ 2;", "Unexpected character."},
		{"unclosed paren", "print (1;", "Expect ')' after expression."},
		{"unclosed block", "{ print 1;", "Expect '}' after block."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := interpret(t, tt.source)
			require.ErrorIs(t, err, ErrCompile)
			assert.Contains(t, errOut, tt.message)
			assert.Contains(t, errOut, "[line 1] Error")
		})
	}
}

func TestCompileErrorRecovery(t *testing.T) {
	// Panic mode suppresses errors until the next statement boundary, so
	// two broken statements produce exactly two diagnostics.
	_, errOut, err := interpret(t, "var 1 = 2;\nvar 3 = 4;\n")
	require.ErrorIs(t, err, ErrCompile)
	assert.Equal(t, 2, strings.Count(errOut, "Error"))
	assert.Contains(t, errOut, "[line 1]")
	assert.Contains(t, errOut, "[line 2]")
}

func TestValueStackBalanced(t *testing.T) {
	// Whatever a script does, the stack must be empty once it finishes.
	sources := []string{
		"print 1 + 2 * 3;",
		"var a = 1; { var b = 2; print a + b; }",
		"for (var i = 0; i < 3; i = i + 1) print i;",
		"fun f(n) { return n; } print f(1) + f(2);",
		"if (true) { print 1; } else { print 2; }",
	}
	for _, source := range sources {
		machine := New()
		machine.SetOutput(&bytes.Buffer{})
		machine.SetErrorOutput(&bytes.Buffer{})
		require.NoError(t, machine.Interpret(source), source)
		assert.Equal(t, 0, machine.sp, "leftover stack values for %q", source)
	}
}

func TestInterning(t *testing.T) {
	machine := New()

	a := machine.copyString("hello")
	b := machine.copyString("hello")
	c := machine.copyString("world")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, a.Hash, b.Hash)

	// takeString resolves to the existing object too.
	assert.Same(t, a, machine.takeString("hello"))
}

func TestFreeReleasesEverything(t *testing.T) {
	machine := New()
	machine.SetOutput(&bytes.Buffer{})
	machine.SetErrorOutput(&bytes.Buffer{})
	require.NoError(t, machine.Interpret(`var s = "heap"; print s + "!";`))

	machine.Free()
	assert.Nil(t, machine.objects)
	assert.Equal(t, 0, machine.sp)
	assert.Equal(t, 0, machine.frameCount)
}
