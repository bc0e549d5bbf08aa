package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynckeyUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Synckey
	}{
		{"number", `{"synckey": 1700000123}`, "1700000123"},
		{"string", `{"synckey": "1700000123"}`, "1700000123"},
		{"null", `{"synckey": null}`, ""},
		{"zero", `{"synckey": 0}`, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data HighlightsData
			require.NoError(t, json.Unmarshal([]byte(tt.in), &data))
			assert.Equal(t, tt.want, data.Synckey)
		})
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	t.Parallel()

	var h RawHighlight
	require.NoError(t, json.Unmarshal([]byte(`{"created": 1700000000}`), &h))
	v, ok := h.Created.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), v)

	require.NoError(t, json.Unmarshal([]byte(`{"created": "1700000000000"}`), &h))
	v, ok = h.Created.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000000), v)

	require.NoError(t, json.Unmarshal([]byte(`{"created": null}`), &h))
	_, ok = h.Created.Int64()
	assert.False(t, ok)
}

func TestTimestampNonNumeric(t *testing.T) {
	t.Parallel()

	var h RawHighlight
	require.NoError(t, json.Unmarshal([]byte(`{"created": "not-a-number"}`), &h))
	_, ok := h.Created.Int64()
	assert.False(t, ok)
}

func TestThoughtNestedPayloadDecodes(t *testing.T) {
	t.Parallel()

	raw := `{
		"synckey": "33",
		"reviews": [
			{"reviewId": "r1", "review": {"content": "nested", "abstract": "quoted", "createTime": 1700000000}},
			{"reviewId": "r2", "content": "top-level"}
		]
	}`

	var data ThoughtsData
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	require.Len(t, data.Reviews, 2)
	require.NotNil(t, data.Reviews[0].Review)
	assert.Equal(t, "nested", data.Reviews[0].Review.Content)
	assert.Nil(t, data.Reviews[1].Review)
	assert.Equal(t, "top-level", data.Reviews[1].Content)
}

func TestReadingStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "✅已读", Book{FinishReading: 1}.ReadingStatus())
	assert.Equal(t, "📖在读", Book{}.ReadingStatus())
}
