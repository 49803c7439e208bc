package core

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// ID is an identifier assigned by the school API. The API uses numbers for some entities and strings
// for others, so it is kept opaque and re-encoded the way it came in.
type ID string

func (id ID) String() string { return string(id) }

// Int returns the numeric value of id, if it is numeric.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// Less orders numeric IDs numerically and falls back to lexical order.
func (id ID) Less(other ID) bool {
	a, aok := id.Int()
	b, bok := other.Int()
	if aok && bok {
		return a < b
	}
	return id < other
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, ok := id.Int(); ok {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decoding id")
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrap(err, "decoding id")
		}
		*id = ID(n.String())
	}
	return nil
}
