package view

import (
	"bytes"
	"encoding/json"
)

// Event is one reported view, encoded as {"nid": 7} or {"nid": "7"}.
// NID keeps the raw text so that validation stays with ParseID.
type Event struct {
	NID string
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var in struct {
		NID json.RawMessage `json:"nid"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	v := bytes.TrimSpace(in.NID)
	switch {
	case len(v) == 0, bytes.Equal(v, []byte("null")):
		e.NID = ""
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		e.NID = s
	default:
		e.NID = string(v)
	}
	return nil
}

// MarshalJSON writes NID as a JSON string.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		NID string `json:"nid"`
	}{NID: e.NID})
}
