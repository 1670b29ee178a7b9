package jsonl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSource_StreamsLines(t *testing.T) {
	path := writeFile(t, `{"region":"west","amount":10.5}

{"region":"east","amount":3,"customer":{"name":"acme"}}
`)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	var recs []store.Record
	for src.Next() {
		recs = append(recs, src.Record())
	}
	require.NoError(t, src.Err())

	require.Len(t, recs, 2)
	assert.Equal(t, "west", recs[0]["region"])
	assert.Equal(t, 10.5, recs[0]["amount"])
	// Nested objects stay traversable for dotted field paths.
	assert.Equal(t, map[string]any{"name": "acme"}, recs[1]["customer"])
}

func TestSource_MalformedLine(t *testing.T) {
	path := writeFile(t, `{"ok":1}
{not json}
`)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.True(t, src.Next())
	assert.False(t, src.Next())
	require.Error(t, src.Err())
	assert.Contains(t, src.Err().Error(), "line 2")
}

func TestSource_EmptyFile(t *testing.T) {
	src, err := Open(writeFile(t, ""))
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}
