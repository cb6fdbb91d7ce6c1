package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/archive")

	res, err := l.Put(context.Background(), strings.NewReader(`{"op":"refund"}`+"\n"),
		PutInput{Key: "oplog/20260829-1.jsonl", ContentType: "application/x-ndjson"})
	require.NoError(t, err)
	assert.Equal(t, "oplog/20260829-1.jsonl", res.Key)
	assert.Equal(t, "/archive/oplog/20260829-1.jsonl", res.URL)

	raw, err := os.ReadFile(filepath.Join(dir, "oplog", "20260829-1.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"refund"`)

	require.NoError(t, l.Delete(context.Background(), res.Key))
	_, err = os.Stat(filepath.Join(dir, "oplog", "20260829-1.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalKeyCannotEscapeBaseDir(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/archive")

	res, err := l.Put(context.Background(), strings.NewReader("x"),
		PutInput{Key: "../../etc/evil.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, "etc/evil.jsonl", res.Key)
	_, err = os.Stat(filepath.Join(dir, "etc", "evil.jsonl"))
	assert.NoError(t, err)
}
