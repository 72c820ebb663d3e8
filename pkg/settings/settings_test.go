package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileUsesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	s, err := Open(path, true, logging.Discard())
	require.NoError(t, err)
	assert.True(t, s.TestMode())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "opening does not create the file")
}

func TestOpenReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SIGN_XML_TESTING_MODE: true\n"), 0600))

	s, err := Open(path, false, logging.Discard())
	require.NoError(t, err)
	assert.True(t, s.TestMode())
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SIGN_XML_TESTING_MODE: [\n"), 0600))

	_, err := Open(path, false, logging.Discard())
	assert.Error(t, err)
}

func TestTogglePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	s, err := Open(path, false, logging.Discard())
	require.NoError(t, err)

	var seen []bool
	s.OnChange(func(on bool) { seen = append(seen, on) })

	on, err := s.Toggle()
	require.NoError(t, err)
	assert.True(t, on)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), TestModeKey+": true")

	reopened, err := Open(path, false, logging.Discard())
	require.NoError(t, err)
	assert.True(t, reopened.TestMode())

	require.NoError(t, s.SetTestMode(true))
	on, err = s.Toggle()
	require.NoError(t, err)
	assert.False(t, on)

	assert.Equal(t, []bool{true, false}, seen, "listeners run only on changes")
}

func TestListenersRunOnSnapshot(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.yaml"), false, logging.Discard())
	require.NoError(t, err)

	var first, late []bool
	s.OnChange(func(on bool) {
		first = append(first, on)
		// Registering from a callback must not deadlock or join the running round
		s.OnChange(func(on bool) { late = append(late, on) })
	})
	s.OnChange(func(on bool) { first = append(first, on) })

	require.NoError(t, s.SetTestMode(true))
	assert.Equal(t, []bool{true, true}, first)
	assert.Empty(t, late)

	require.NoError(t, s.SetTestMode(false))
	assert.Equal(t, []bool{false}, late)
}

func TestWatchPicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	s, err := Open(path, false, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Watch())
	defer s.Close()

	changes := make(chan bool, 4)
	s.OnChange(func(on bool) { changes <- on })

	require.NoError(t, os.WriteFile(path, []byte("SIGN_XML_TESTING_MODE: true\n"), 0600))

	select {
	case on := <-changes:
		assert.True(t, on)
	case <-time.After(2 * time.Second):
		t.Fatal("external edit not observed")
	}
	assert.True(t, s.TestMode())
}

func TestCloseWithoutWatch(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.yaml"), false, logging.Discard())
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
