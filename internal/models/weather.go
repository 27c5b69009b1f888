package models

// DateField is the one entry field the service treats specially.
const DateField = "date"

// Entry is a single weather observation. Fields are open-ended (city, tempF,
// conditions, ...); only DateField has meaning to the store.
type Entry map[string]any

// Collection is the full persisted list of entries, newest first.
type Collection []Entry

// Clone returns a shallow copy of the entry so callers can fill fields
// without mutating the original map.
func (e Entry) Clone() Entry {
	out := make(Entry, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	return out
}

// HasDate reports whether the entry carries a usable date. Absent, null, empty
// string, false and numeric zero all count as unset.
func (e Entry) HasDate() bool {
	v, ok := e[DateField]
	if !ok {
		return false
	}
	return !isFalsy(v)
}

// City returns the "city" field as a string for log lines, or "" when absent.
func (e Entry) City() string {
	if s, ok := e["city"].(string); ok {
		return s
	}
	return ""
}

// Prepend returns a new collection with entry at the front.
func (c Collection) Prepend(entry Entry) Collection {
	out := make(Collection, 0, len(c)+1)
	out = append(out, entry)
	return append(out, c...)
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := t.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}
