package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
)

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	e, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer e.Close()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestEngineOpen_CreatesTypeDatabase(t *testing.T) {
	e := createTestEngine(t)
	h := openTestHandle(t, e, "person")

	if _, err := os.Stat(filepath.Join(e.Dir(), "person.db")); os.IsNotExist(err) {
		t.Error("person.db was not created")
	}

	var version int
	err := h.conn.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	err = h.conn.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestEngineOpen_ReopensExistingData(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	h1, err := e1.Open(context.Background(), "person", nil)
	require.NoError(t, err)
	putCommitted(t, h1, "1", `{"name":"a"}`)
	require.NoError(t, e1.Close())

	e2, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer e2.Close()
	h2, err := e2.Open(context.Background(), "person", nil)
	require.NoError(t, err)

	n, err := h2.Count(context.Background(), query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEngineOpen_InvalidTypeName(t *testing.T) {
	e := createTestEngine(t)

	for _, rt := range []string{"", "Person", "../escape", "a-b"} {
		_, err := e.Open(context.Background(), record.Type(rt), nil)
		require.Error(t, err, rt)
		assert.True(t, IsOpenFailed(err), rt)
	}
}

func TestEngineOpen_CorruptDatabase(t *testing.T) {
	e := createTestEngine(t)
	path := filepath.Join(e.Dir(), "broken.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, not even close......................................................"), 0o644))

	_, err := e.Open(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.True(t, IsOpenFailed(err))
	assert.Equal(t, ErrCodeOpenFailed, CodeOf(err))
}

func TestEngineOpen_AfterClose(t *testing.T) {
	e := createTestEngine(t)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Open(context.Background(), "person", nil)
	assert.True(t, IsOpenFailed(err))
}

func TestEngineClose_ClosesHandles(t *testing.T) {
	e := createTestEngine(t)
	h, err := e.Open(context.Background(), "person", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, e.OpenHandles())

	require.NoError(t, e.Close())
	assert.True(t, h.Closed())
	assert.Equal(t, 0, e.OpenHandles())
}

func TestEngineTypes(t *testing.T) {
	e := createTestEngine(t)
	openTestHandle(t, e, "pet")
	openTestHandle(t, e, "person")
	require.NoError(t, os.WriteFile(filepath.Join(e.Dir(), "Not-A-Type.db"), nil, 0o644))

	types, err := e.Types()
	require.NoError(t, err)
	assert.Equal(t, []record.Type{"person", "pet"}, types)
}

func TestCopyDepth(t *testing.T) {
	e, err := Open(Config{Dir: t.TempDir(), DefaultCopyDepth: 2, CopyDepth: map[record.Type]int{"person": 0}})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 0, e.CopyDepth("person"))
	assert.Equal(t, 2, e.CopyDepth("pet"))
}

func TestErrorFormatting(t *testing.T) {
	err := newError(ErrCodeHandleClosed, "person", "query", nil)
	assert.Equal(t, "HANDLE_CLOSED: query person", err.Error())
	assert.True(t, IsHandleClosed(err))
	assert.False(t, IsOpenFailed(err))
	assert.Equal(t, ErrorCode(""), CodeOf(os.ErrNotExist))
}
