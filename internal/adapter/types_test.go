package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		name  string
		typ   TypeName
		in    any
		want  any
		error bool
	}{
		{"int from int", Int, 3, int64(3), false},
		{"int from string", Int, "42", int64(42), false},
		{"int from float string", Int, "4.9", int64(4), false},
		{"int from garbage", Int, "abc", nil, true},
		{"serial from float", Serial, 7.0, int64(7), false},
		{"float from string", Float, "1.5", 1.5, false},
		{"string from int", String, 12, "12", false},
		{"text from bytes", Text, []byte("hi"), "hi", false},
		{"bool from false string", Boolean, "off", false, false},
		{"bool from true string", Boolean, "yes", true, false},
		{"bool from int", Boolean, 0, false, false},
		{"json from map", JSON, map[string]any{"a": 1}, `{"a":1}`, false},
		{"json from raw", JSON, `[1,2]`, `[1,2]`, false},
		{"nil passes through", Int, nil, nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sanitize(tc.typ, tc.in)
			if tc.error {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSanitizeDatetime(t *testing.T) {
	got, err := Sanitize(Datetime, "2024-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Equal(got.(time.Time)))

	got, err = Sanitize(Datetime, "2024-03-01")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(got.(time.Time)))

	_, err = Sanitize(Datetime, "yesterday")
	assert.Error(t, err)
}

func TestSanitizeList(t *testing.T) {
	typ, ok := LookupType(Int)
	require.True(t, ok)

	got, err := typ.SanitizeList([]any{1, "2", 3.0})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got)

	got, err = typ.SanitizeList(5)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, got)

	str, _ := LookupType(String)
	got, err = str.SanitizeList([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = typ.SanitizeList([]any{"x"})
	assert.Error(t, err)

	_, err = typ.SanitizeList([]any{1, nil})
	assert.EqualError(t, err, "element 1: null in list")
}

func TestTypeDefaults(t *testing.T) {
	for _, name := range TypeNames() {
		typ, ok := LookupType(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, typ.DBName)
	}

	serial, _ := LookupType(Serial)
	assert.True(t, serial.Properties.PrimaryKey)
	assert.True(t, serial.Properties.AutoIncrement)
	assert.False(t, serial.Properties.Nullable)

	text, _ := LookupType(Text)
	assert.True(t, text.Properties.Nullable)
}
