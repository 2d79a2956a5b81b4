package logfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("", Options{})
	assert.Error(t, err)
}

func TestOpen_CreatesDirectoryAndTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "discord.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old run\n"), 0o644))

	f, err := Open(path, Options{Truncate: true})
	require.NoError(t, err)
	defer f.Close()

	content, err := f.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Equal(t, path, f.Path())
}

func TestSnapshot_MissingFileIsEmpty(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "never-written.log"), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.Snapshot(&buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSnapshot_SeesOnlyWholeLines(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "discord.log"), Options{})
	require.NoError(t, err)
	defer f.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = fmt.Fprintf(f, "writer %d line %d\n", w, i)
			}
		}(w)
	}

	for i := 0; i < 20; i++ {
		content, err := f.ReadAll()
		require.NoError(t, err)
		if content != "" {
			assert.True(t, strings.HasSuffix(content, "\n"), "snapshot ended mid-line")
		}
	}
	wg.Wait()

	content, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 800, strings.Count(content, "\n"))
}
