package vm

// Table is an open-addressed hash table with linear probing, keyed by
// interned strings. It backs both the globals table and the intern table
// itself. A nil-key entry with a boolean true value is a tombstone; a
// nil-key entry with a nil value is truly empty. Count includes tombstones,
// so the grow policy is conservative.
type Table struct {
	count   int
	entries []Entry
}

// Entry is a single table slot
type Entry struct {
	Key   *ObjString
	Value Value
}

const tableMaxLoad = 0.75
const tableMinCapacity = 8

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{}
}

// findEntry locates the slot for key: the entry holding it, or, failing
// that, the first tombstone passed on the probe path (so inserts reuse
// deleted slots), or else the first truly empty slot.
func findEntry(entries []Entry, key *ObjString) *Entry {
	index := int(key.Hash) % len(entries)
	var tombstone *Entry

	for {
		entry := &entries[index]
		if entry.Key == nil {
			if entry.Value.IsNil() {
				// Empty slot: the key is absent.
				if tombstone != nil {
					return tombstone
				}
				return entry
			}
			// Tombstone: remember the first one, keep probing.
			if tombstone == nil {
				tombstone = entry
			}
		} else if entry.Key == key {
			return entry
		}

		index = (index + 1) % len(entries)
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]Entry, capacity)
	for i := range entries {
		entries[i].Value = NilVal()
	}

	// Rebuild from live entries only; tombstones are discarded and count
	// recomputed.
	t.count = 0
	for i := range t.entries {
		entry := &t.entries[i]
		if entry.Key == nil {
			continue
		}
		dest := findEntry(entries, entry.Key)
		dest.Key = entry.Key
		dest.Value = entry.Value
		t.count++
	}

	t.entries = entries
}

// Set stores value under key, growing as needed. Returns true when key was
// not already present.
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		capacity := len(t.entries) * 2
		if capacity < tableMinCapacity {
			capacity = tableMinCapacity
		}
		t.adjustCapacity(capacity)
	}

	entry := findEntry(t.entries, key)
	isNewKey := entry.Key == nil
	if isNewKey && entry.Value.IsNil() {
		// Filling a truly empty slot; reusing a tombstone leaves count as is.
		t.count++
	}

	entry.Key = key
	entry.Value = value
	return isNewKey
}

// Get looks up key, reporting presence and the stored value
func (t *Table) Get(key *ObjString) (Value, bool) {
	if t.count == 0 {
		return NilVal(), false
	}

	entry := findEntry(t.entries, key)
	if entry.Key == nil {
		return NilVal(), false
	}
	return entry.Value, true
}

// Delete removes key, leaving a tombstone so later probe chains stay intact
func (t *Table) Delete(key *ObjString) bool {
	if t.count == 0 {
		return false
	}

	entry := findEntry(t.entries, key)
	if entry.Key == nil {
		return false
	}

	entry.Key = nil
	entry.Value = BoolVal(true)
	return true
}

// AddAll copies every live entry of from into t
func (t *Table) AddAll(from *Table) {
	for i := range from.entries {
		entry := &from.entries[i]
		if entry.Key != nil {
			t.Set(entry.Key, entry.Value)
		}
	}
}

// FindString looks up an interned string by text and hash, before any
// ObjString for that text exists. Probing must pass through tombstones and
// stop only at truly empty slots so deleted entries never mask live matches.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if t.count == 0 {
		return nil
	}

	index := int(hash) % len(t.entries)
	for {
		entry := &t.entries[index]
		if entry.Key == nil {
			if entry.Value.IsNil() {
				return nil
			}
			// Tombstone: keep probing.
		} else if entry.Key.Hash == hash && entry.Key.Chars == chars {
			return entry.Key
		}

		index = (index + 1) % len(t.entries)
	}
}

// Free releases the table's storage
func (t *Table) Free() {
	t.count = 0
	t.entries = nil
}
