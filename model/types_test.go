package model

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		edge EdgeData
		key  EdgeKey
	}{
		{"origin", EdgeData{From: Position{0, 0}, To: Position{1, 0}}, "0,0:1,0"},
		{"negative", EdgeData{From: Position{-1, 2}, To: Position{-2, 3}}, "-1,2:-2,3"},
		{"diagonal", EdgeData{From: Position{4, 4}, To: Position{5, 5}}, "4,4:5,5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.edge.Key())

			parsed, err := ParseEdgeKey(string(tt.key))
			require.NoError(t, err)
			assert.Equal(t, tt.edge, parsed)
		})
	}
}

func TestParseEdgeKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "0,0", "0,0:1", "a,b:c,d", "0,0;1,0", "1:2"} {
		_, err := ParseEdgeKey(key)
		assert.ErrorIs(t, err, ErrInvalidEdgeKey, "key %q", key)
	}
}

func TestEdgeReverse(t *testing.T) {
	e := EdgeData{From: Position{1, 2}, To: Position{3, 4}}
	assert.Equal(t, EdgeData{From: Position{3, 4}, To: Position{1, 2}}, e.Reverse())
}

func TestVehicleIDAcceptsStringAndNumber(t *testing.T) {
	var v Vehicle
	require.NoError(t, json.Unmarshal([]byte(`{"id":"v1","x":1,"y":2,"color":"#fff"}`), &v))
	assert.Equal(t, VehicleID("v1"), v.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"x":1,"y":2,"color":"#fff"}`), &v))
	assert.Equal(t, VehicleID("42"), v.ID)

	var id VehicleID
	assert.Error(t, json.Unmarshal([]byte(`{"nested":true}`), &id))
}

func TestVehiclePatchApply(t *testing.T) {
	v := Vehicle{ID: "v1", X: 1, Y: 1, Color: "#ff0000"}

	x := 5
	moved := VehiclePatch{ID: "v1", X: &x}.Apply(v)
	assert.Equal(t, 5, moved.X)
	assert.Equal(t, 1, moved.Y)
	assert.Equal(t, "#ff0000", moved.Color)

	moved = MoveTo("v1", Position{7, 8}).Apply(v)
	assert.Equal(t, Position{7, 8}, moved.Position())
}

func TestVehiclePatchDecodesPartialPayload(t *testing.T) {
	var p VehiclePatch
	require.NoError(t, json.Unmarshal([]byte(`{"id":"v9","y":3}`), &p))
	assert.Equal(t, VehicleID("v9"), p.ID)
	assert.Nil(t, p.X)
	require.NotNil(t, p.Y)
	assert.Equal(t, 3, *p.Y)
}

func TestRandomColor(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		c := RandomColor(rng)
		require.Len(t, c, 7)
		_, ok := ParseColor(c)
		assert.True(t, ok, "color %q should parse", c)
	}
	assert.NotEmpty(t, RandomColor(nil))
}

func TestParseColor(t *testing.T) {
	c, ok := ParseColor("#ff8000")
	assert.True(t, ok)
	assert.Equal(t, uint8(0xff), c.R)
	assert.Equal(t, uint8(0x80), c.G)
	assert.Equal(t, uint8(0x00), c.B)

	c, ok = ParseColor("#0f0")
	assert.True(t, ok)
	assert.Equal(t, uint8(0xff), c.G)

	c, ok = ParseColor("red")
	assert.False(t, ok)
	assert.Equal(t, FallbackColor, c)
}
