package vm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// key makes a standalone ObjString for table tests. Tables compare keys by
// pointer, so each key is created exactly once per test.
func key(chars string) *ObjString {
	return &ObjString{Chars: chars, Hash: hashString(chars)}
}

// collidingKey makes a key with a forced hash so probe chains are
// deterministic regardless of the real hash function.
func collidingKey(chars string, hash uint32) *ObjString {
	return &ObjString{Chars: chars, Hash: hash}
}

func TestTableSetGet(t *testing.T) {
	table := NewTable()
	k := key("answer")

	assert.True(t, table.Set(k, NumberVal(42)))
	assert.False(t, table.Set(k, NumberVal(43)), "second set of same key is not new")

	v, ok := table.Get(k)
	require.True(t, ok)
	assert.Equal(t, 43.0, v.AsNumber())
}

func TestTableGetMissing(t *testing.T) {
	table := NewTable()
	_, ok := table.Get(key("nothing"))
	assert.False(t, ok)

	table.Set(key("something"), NilVal())
	_, ok = table.Get(key("something"))
	assert.False(t, ok, "distinct pointer with same text is a different key")
}

func TestTableDelete(t *testing.T) {
	table := NewTable()
	k := key("gone")

	assert.False(t, table.Delete(k), "delete on empty table")

	table.Set(k, BoolVal(true))
	assert.True(t, table.Delete(k))
	_, ok := table.Get(k)
	assert.False(t, ok)

	// Deleting again finds nothing.
	assert.False(t, table.Delete(k))
}

func TestTableTombstoneRoundTrip(t *testing.T) {
	table := NewTable()
	k := key("k")

	// set; delete; get -> absent
	table.Set(k, NumberVal(1))
	table.Delete(k)
	_, ok := table.Get(k)
	require.False(t, ok)

	// delete; set; get -> present, reusing the tombstone slot
	assert.True(t, table.Set(k, NumberVal(2)))
	v, ok := table.Get(k)
	require.True(t, ok)
	assert.Equal(t, 2.0, v.AsNumber())
}

func TestTableProbeThroughTombstones(t *testing.T) {
	table := NewTable()

	// Three keys forced onto the same bucket chain.
	a := collidingKey("a", 1)
	b := collidingKey("b", 9)
	c := collidingKey("c", 17)
	table.Set(a, NumberVal(1))
	table.Set(b, NumberVal(2))
	table.Set(c, NumberVal(3))

	// Deleting the middle entry must not hide the one probing past it.
	table.Delete(b)
	v, ok := table.Get(c)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.AsNumber())

	// A new insert reuses the tombstone.
	d := collidingKey("d", 25)
	table.Set(d, NumberVal(4))
	v, ok = table.Get(d)
	require.True(t, ok)
	assert.Equal(t, 4.0, v.AsNumber())

	v, ok = table.Get(c)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.AsNumber())
}

func TestTableGrowth(t *testing.T) {
	table := NewTable()

	keys := make([]*ObjString, 100)
	for i := range keys {
		keys[i] = key(fmt.Sprintf("key-%d", i))
		table.Set(keys[i], NumberVal(float64(i)))
	}

	for i, k := range keys {
		v, ok := table.Get(k)
		require.True(t, ok, "key-%d lost after growth", i)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestTableResizeDropsTombstones(t *testing.T) {
	table := NewTable()

	// Fill and delete to accumulate tombstones, then grow past them.
	var kept []*ObjString
	for i := 0; i < 50; i++ {
		k := key(fmt.Sprintf("k%d", i))
		table.Set(k, NumberVal(float64(i)))
		if i%2 == 0 {
			table.Delete(k)
		} else {
			kept = append(kept, k)
		}
	}

	for _, k := range kept {
		_, ok := table.Get(k)
		assert.True(t, ok, "live key %s lost", k.Chars)
	}
	assert.LessOrEqual(t, table.count, len(table.entries), "count stays bounded")
}

func TestTableAddAll(t *testing.T) {
	src := NewTable()
	dst := NewTable()

	a, b := key("a"), key("b")
	src.Set(a, NumberVal(1))
	src.Set(b, NumberVal(2))
	src.Delete(b)

	dst.AddAll(src)

	v, ok := dst.Get(a)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.AsNumber())
	_, ok = dst.Get(b)
	assert.False(t, ok, "tombstones do not copy")
}

func TestFindString(t *testing.T) {
	table := NewTable()

	k := key("needle")
	table.Set(k, NilVal())

	found := table.FindString("needle", k.Hash)
	assert.Same(t, k, found)

	assert.Nil(t, table.FindString("missing", hashString("missing")))
}

func TestFindStringPassesTombstones(t *testing.T) {
	table := NewTable()

	a := collidingKey("aa", 3)
	b := collidingKey("bb", 11)
	table.Set(a, NilVal())
	table.Set(b, NilVal())

	// A tombstone on b's probe path must not hide it from FindString.
	table.Delete(a)
	assert.Same(t, b, table.FindString("bb", 11))
	assert.Nil(t, table.FindString("aa", 3), "deleted strings are not found")
}

func TestFindStringHashCollision(t *testing.T) {
	table := NewTable()

	// Same forced hash, different text: the byte comparison must decide.
	a := collidingKey("first", 7)
	b := collidingKey("second", 7)
	table.Set(a, NilVal())
	table.Set(b, NilVal())

	assert.Same(t, a, table.FindString("first", 7))
	assert.Same(t, b, table.FindString("second", 7))
	assert.Nil(t, table.FindString("third", 7))
}
