package view

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `{"nid": 7}`, want: "7"},
		{in: `{"nid": "7"}`, want: "7"},
		{in: `{"nid": -3}`, want: "-3"},
		{in: `{"nid": 1.5}`, want: "1.5"},
		{in: `{"nid": null}`, want: ""},
		{in: `{}`, want: ""},
		{in: `{"nid": " 7"}`, want: " 7"},
		{in: `{"nid": [1]}`, want: "[1]"},
		{in: `{"nid":`, wantErr: true},
		{in: `[]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ev Event
			err := json.Unmarshal([]byte(tt.in), &ev)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.NID)
		})
	}
}

func TestEvent_RoundTripThroughParseID(t *testing.T) {
	b, err := json.Marshal(Event{NID: "42"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nid":"42"}`, string(b))

	var ev Event
	require.NoError(t, json.Unmarshal(b, &ev))
	id, err := ParseID(ev.NID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}
