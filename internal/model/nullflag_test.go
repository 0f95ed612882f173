package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullFlag_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want NullFlag
	}{
		{"NULL stays absent", nil, NullFlag{}},
		{"integer 0", int64(0), Flag(false)},
		{"integer 1", int64(1), Flag(true)},
		{"driver bool", true, Flag(true)},
		{"text digit", []byte("1"), Flag(true)},
		{"text bool", "false", Flag(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f NullFlag
			require.NoError(t, f.Scan(tt.src))
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestNullFlag_ScanRejectsGarbage(t *testing.T) {
	var f NullFlag
	assert.Error(t, f.Scan("maybe"))
	assert.Error(t, f.Scan(3.5))
}

func TestNullFlag_ValueKeepsAbsent(t *testing.T) {
	v, err := NullFlag{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v, "absent flag must be written as NULL, not 0")

	v, err = Flag(false).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, err = Flag(true).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNullFlag_JSONRoundTripPreservesTriState(t *testing.T) {
	for _, f := range []NullFlag{{}, Flag(false), Flag(true)} {
		data, err := json.Marshal(f)
		require.NoError(t, err)

		var back NullFlag
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, f, back, "round trip of %s", data)
	}
}

func TestNullFlag_JSONShape(t *testing.T) {
	data, err := json.Marshal(struct {
		A NullFlag `json:"a"`
		B NullFlag `json:"b"`
		C NullFlag `json:"c"`
	}{NullFlag{}, Flag(false), Flag(true)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":0,"c":1}`, string(data))
}

func TestNullFlag_UnmarshalQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want NullFlag
	}{
		{`"1"`, Flag(true)},
		{`"0"`, Flag(false)},
		{`"true"`, Flag(true)},
		{`"false"`, Flag(false)},
		{`" 1 "`, Flag(true)},
		{`""`, NullFlag{}},
		{`1`, Flag(true)},
		{`false`, Flag(false)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f NullFlag
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestNullFlag_UnmarshalQuotedGarbage(t *testing.T) {
	var f NullFlag
	assert.Error(t, json.Unmarshal([]byte(`"yes please"`), &f))
}
