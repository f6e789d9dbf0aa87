package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"hello"`, "hello"},
		{`42`, "42"},
		{`0.85`, "0.85"},
		{`true`, "true"},
		{`null`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FlexibleStringValue(json.RawMessage(tt.raw)), tt.raw)
	}
}

func TestFlexibleFloat(t *testing.T) {
	f, err := FlexibleFloat(json.RawMessage(`"0.92"`))
	require.NoError(t, err)
	assert.InDelta(t, 0.92, f, 1e-9)

	f, err = FlexibleFloat(json.RawMessage(`7`))
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	f, err = FlexibleFloat(nil)
	require.NoError(t, err)
	assert.Zero(t, f)

	_, err = FlexibleFloat(json.RawMessage(`"high"`))
	assert.Error(t, err)
}

func TestFlexibleInt(t *testing.T) {
	n, err := FlexibleInt(json.RawMessage(`"1250"`))
	require.NoError(t, err)
	assert.Equal(t, 1250, n)
}

func TestFlexibleStringSlice(t *testing.T) {
	assert.Equal(t, []string{"ai", "gov"}, FlexibleStringSlice(json.RawMessage(`["ai", " gov ", ""]`)))
	assert.Equal(t, []string{"ai", "gov"}, FlexibleStringSlice(json.RawMessage(`"ai, gov,"`)))
	assert.Equal(t, []string{"1", "2"}, FlexibleStringSlice(json.RawMessage(`[1, 2]`)))
	assert.Equal(t, []string{}, FlexibleStringSlice(json.RawMessage(`null`)))
}
