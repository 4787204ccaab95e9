package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	b, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestJSONTagsNameFields(t *testing.T) {
	type geometry struct {
		Width int `json:"width"`
	}
	data, err := Marshal(geometry{Width: 5})
	require.NoError(t, err)

	var decoded any
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"width": uint64(5)}, decoded)
}

func TestStreamCarriesRawMessages(t *testing.T) {
	var buf bytes.Buffer
	params, err := Marshal([]string{"stage", "1"})
	require.NoError(t, err)
	require.NoError(t, NewEncoder(&buf).Encode(struct {
		Action string     `cbor:"action"`
		Params RawMessage `cbor:"params"`
	}{"lookup", params}))

	var got struct {
		Action string     `cbor:"action"`
		Params RawMessage `cbor:"params"`
	}
	require.NoError(t, NewDecoder(&buf).Decode(&got))
	assert.Equal(t, "lookup", got.Action)

	var args []string
	require.NoError(t, Unmarshal(got.Params, &args))
	assert.Equal(t, []string{"stage", "1"}, args)
}
