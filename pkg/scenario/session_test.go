package scenario

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionError(t *testing.T) {
	cause := errors.New("chromium not found")
	err := &SessionError{Op: "launch", Err: cause}

	assert.Equal(t, "session launch: chromium not found", err.Error())
	assert.ErrorIs(t, err, cause)

	var sessErr *SessionError
	require.ErrorAs(t, error(err), &sessErr)
	assert.Equal(t, "launch", sessErr.Op)
}

func TestSession_CloseIdempotent(t *testing.T) {
	// a session with no live browser layers closes cleanly and stays closed
	s := &Session{state: StateActive}
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	require.NoError(t, s.Close())
}

func TestSession_NetworkTracking(t *testing.T) {
	s := &Session{lastActivity: time.Now().Add(-time.Hour)}

	s.netMu.Lock()
	s.inflight = 2
	s.netMu.Unlock()
	assert.Equal(t, 2, s.InFlight())
	assert.True(t, time.Since(s.LastActivity()) > time.Minute)
}

func TestSession_ConsoleDump(t *testing.T) {
	s := &Session{}
	assert.Empty(t, s.ConsoleDump())

	s.console = append(s.console, "[log] app ready", "[error] fetch failed")
	assert.Equal(t, "[log] app ready\n[error] fetch failed\n", s.ConsoleDump())
}
