package tools

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs_Float(t *testing.T) {
	a := Args{"n": 1.5, "s": " 2.25 ", "blank": "", "null": nil, "bad": "abc"}

	f, err := a.Float("n")
	require.NoError(t, err)
	assert.Equal(t, 1.5, *f)

	f, err = a.Float("s")
	require.NoError(t, err)
	assert.Equal(t, 2.25, *f)

	for _, key := range []string{"blank", "null", "missing"} {
		f, err = a.Float(key)
		require.NoError(t, err)
		assert.Nil(t, f, key)
	}

	_, err = a.Float("bad")
	require.Error(t, err)
	assert.Equal(t, "Parameter 'bad' must be a number", err.Error())

	for _, v := range []any{"NaN", "Inf", "-Inf", "+Infinity", math.NaN(), math.Inf(1)} {
		_, err = Args{"x": v}.Float("x")
		require.Error(t, err, "%v", v)
		assert.Equal(t, "Parameter 'x' must be a number", err.Error())
	}
}

func TestArgs_IntOr(t *testing.T) {
	a := Args{"whole": 5.0, "text": "7", "frac": 1.5}

	n, err := a.IntOr("whole", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = a.IntOr("text", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = a.IntOr("missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = a.IntOr("frac", 0)
	assert.EqualError(t, err, "Parameter 'frac' must be an integer")
}

func TestArgs_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"comma separated", "GOLD, SILVER,,OIL", []string{"GOLD", "SILVER", "OIL"}},
		{"array", []any{"A", "B"}, []string{"A", "B"}},
		{"single", "GOLD", []string{"GOLD"}},
		{"absent", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Args{"k": tt.in}.Strings("k")
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgs_Ints(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []int
		wantErr bool
	}{
		{"single number", 1001.0, []int{1001}, false},
		{"comma separated", "1001, 2045", []int{1001, 2045}, false},
		{"array", []any{1001.0, "2045"}, []int{1001, 2045}, false},
		{"not a number", "1001,abc", nil, true},
		{"fraction", []any{1.5}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Args{"ids": tt.in}.Ints("ids", idsMessage)
			if tt.wantErr {
				assert.EqualError(t, err, idsMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgs_Bool(t *testing.T) {
	a := Args{"b": true, "s": "true", "one": "1", "no": "no"}

	assert.True(t, a.Bool("b"))
	assert.True(t, a.Bool("s"))
	assert.True(t, a.Bool("one"))
	assert.False(t, a.Bool("no"))
	assert.False(t, a.Bool("missing"))
	assert.Nil(t, a.OptionalBool("missing"))
	assert.True(t, *a.OptionalBool("b"))
}

func TestLeverageMap(t *testing.T) {
	got, err := leverageMap(map[string]any{"SHARES": 5.0, "CURRENCIES": "30"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SHARES": 5, "CURRENCIES": 30}, got)

	_, err = leverageMap("5")
	assert.Error(t, err)

	got, err = leverageMap(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
