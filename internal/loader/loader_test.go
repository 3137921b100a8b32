package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		msgs, err := Decode([]byte(`[{"id":"q1","content":"hi","isAnswer":false,"parentMessageId":null}]`))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].ParentMessageID.IsRoot())
	})

	t.Run("envelope", func(t *testing.T) {
		msgs, err := Decode([]byte(`{"limit":20,"has_more":false,"data":[{"id":"q1"},{"id":"a1","isAnswer":true}]}`))
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.True(t, msgs[0].ParentMessageID.IsLegacy())
	})

	t.Run("empty envelope", func(t *testing.T) {
		msgs, err := Decode([]byte(`{"data":null}`))
		require.NoError(t, err)
		assert.NotNil(t, msgs)
		assert.Empty(t, msgs)
	})

	t.Run("rejects scalars", func(t *testing.T) {
		_, err := Decode([]byte(`"messages"`))
		assert.Error(t, err)
		_, err = Decode([]byte("  "))
		assert.Error(t, err)
	})
}

func TestLoad_Valid(t *testing.T) {
	res, err := Load(strings.NewReader(`[{"id":"q1"},{"id":"a1","isAnswer":true,"parentMessageId":"q1"}]`))
	require.NoError(t, err)
	assert.Len(t, res.Messages, 2)
	assert.False(t, res.Repair.WasRepaired)
}

func TestLoad_RepairsExport(t *testing.T) {
	input := `[
  // exported by hand
  {"id": "q1", "content": "hi", "parentMessageId": null,},
  {"id": "a1", "content": "hello", "isAnswer": true, "parentMessageId": "q1"},
]`
	res, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "a1", res.Messages[1].ID)
	assert.True(t, res.Repair.WasRepaired)
	assert.Equal(t, []string{"comments_removed", "trailing_commas"}, res.Repair.Strategies)
	assert.Equal(t, 1, res.Repair.CommentsLost)
}

func TestLoad_Truncated(t *testing.T) {
	res, err := Load(strings.NewReader(`[{"id":"q1","content":"hi"},{"id":"a1","content":"hel`))
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "hel", res.Messages[1].Content)
	assert.Contains(t, res.Repair.Strategies, "completion")
}

func TestLoad_Unrepairable(t *testing.T) {
	_, err := Load(strings.NewReader(`{"data": 12}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	data, err := json.Marshal(map[string]any{"data": []map[string]any{{"id": "q1"}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	res, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, res.Messages, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRepair(t *testing.T) {
	t.Run("valid input untouched", func(t *testing.T) {
		in := `{"data": []}`
		out, stats, err := Repair(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.False(t, stats.WasRepaired)
		assert.Equal(t, len(in), stats.RepairedBytes)
	})

	t.Run("trailing commas", func(t *testing.T) {
		out, stats, err := Repair(`[{"id": "q1",}]`)
		require.NoError(t, err)
		assert.Equal(t, `[{"id": "q1"}]`, out)
		assert.Equal(t, 1, stats.ErrorsFixed)
	})

	t.Run("brackets inside strings are ignored", func(t *testing.T) {
		out, _, err := Repair(`[{"id": "q1", "content": "a [b {c"}`)
		require.NoError(t, err)
		assert.Equal(t, `[{"id": "q1", "content": "a [b {c"}]`, out)
	})

	t.Run("unquoted keys fall through to the library", func(t *testing.T) {
		out, stats, err := Repair(`[{id: 'q1'}]`)
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(out)))
		assert.Contains(t, stats.Strategies, "jsonrepair_library")
	})

	t.Run("string contents survive", func(t *testing.T) {
		out, stats, err := Repair(`[{"id": "q1", "content": "use /* glob */ here, } // and ,]", "note": "a\"// b",}, /* tail */]`)
		require.NoError(t, err)
		assert.Equal(t, `[{"id": "q1", "content": "use /* glob */ here, } // and ,]", "note": "a\"// b"} ]`, out)
		assert.Equal(t, 1, stats.CommentsLost)
		assert.Equal(t, []string{"comments_removed", "trailing_commas"}, stats.Strategies)
	})
}

func TestLoad_KeepsContentWhenRepairing(t *testing.T) {
	res, err := Load(strings.NewReader(`[{"id":"q1","content":"use /* glob */ here","isAnswer":false,},{"id":"a1","content":"x, }","isAnswer":true,},]`))
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "use /* glob */ here", res.Messages[0].Content)
	assert.Equal(t, "x, }", res.Messages[1].Content)
	assert.Equal(t, []string{"trailing_commas"}, res.Repair.Strategies)
	assert.Zero(t, res.Repair.CommentsLost)
}
