package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePayload() Value {
	return MapOf(map[string]Value{
		"symbol": String("BTC/USDT"),
		"price": MapOf(map[string]Value{
			"value":    Number(50000.5),
			"currency": String("USDT"),
		}),
		"filled": Boolean(false),
		"fills":  ListOf(Number(1), Number(2), Number(3)),
		"note":   Null(),
	})
}

func TestValueJSONRoundTrip(t *testing.T) {
	orig := samplePayload()

	encoded, err := orig.MarshalJSON()
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, decoded.UnmarshalJSON(encoded))
	require.True(t, orig.Equal(decoded), "round-trip mismatch: got %s want %s", decoded, orig)
}

func TestValueCloneIsIndependent(t *testing.T) {
	orig := samplePayload()
	clone := orig.Clone()

	require.NoError(t, clone.SetPath("price.value", Number(1)))

	got, err := orig.Resolve("price.value")
	require.NoError(t, err)
	require.Equal(t, 50000.5, got.Num)
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same maps", samplePayload(), samplePayload(), true},
		{"number vs string", Number(1), String("1"), false},
		{"list order matters", ListOf(Number(1), Number(2)), ListOf(Number(2), Number(1)), false},
		{"null equals null", Null(), Null(), true},
		{"missing key", MapOf(map[string]Value{"a": Number(1)}), MapOf(map[string]Value{"b": Number(1)}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValueContains(t *testing.T) {
	list := ListOf(String("a"), String("b"))
	ok, err := list.Contains(String("b"))
	require.NoError(t, err)
	require.True(t, ok)

	str := String("flash crash")
	ok, err = str.Contains(String("crash"))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Number(3).Contains(Number(3))
	require.Error(t, err)
}

func TestFromAnyRejectsUnsupportedTypes(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}
