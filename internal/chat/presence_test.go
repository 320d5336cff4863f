package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_JoinAndRoster(t *testing.T) {
	p := NewPresence()

	name, err := p.Join("conn1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = p.Join("conn2", "  bob  ")
	require.NoError(t, err)
	assert.Equal(t, "bob", name, "names are trimmed before binding")

	assert.Equal(t, []string{"alice", "bob"}, p.Roster())
}

func TestPresence_RejectsInvalidNames(t *testing.T) {
	p := NewPresence()

	for _, requested := range []string{"", "   ", "a|b"} {
		_, err := p.Join("conn1", requested)
		require.Error(t, err)
		assert.Equal(t, ErrInvalidName, CodeOf(err), "name %q", requested)
	}

	assert.Empty(t, p.Roster())
}

func TestPresence_NameUniqueness(t *testing.T) {
	p := NewPresence()

	_, err := p.Join("conn1", "alice")
	require.NoError(t, err)

	_, err = p.Join("conn2", "alice")
	require.Error(t, err)
	assert.Equal(t, ErrUsernameTaken, CodeOf(err))

	// Case-sensitive exact match: a different casing is a different name.
	_, err = p.Join("conn2", "Alice")
	require.NoError(t, err)
}

func TestPresence_RejoinIsInvalid(t *testing.T) {
	p := NewPresence()

	_, err := p.Join("conn1", "alice")
	require.NoError(t, err)

	// Identity binding is single-shot, even for a fresh name.
	_, err = p.Join("conn1", "alice2")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))
}

func TestPresence_LeaveReleasesName(t *testing.T) {
	p := NewPresence()

	_, err := p.Join("conn1", "alice")
	require.NoError(t, err)

	name, wasBound := p.Leave("conn1")
	assert.True(t, wasBound)
	assert.Equal(t, "alice", name)
	assert.Empty(t, p.Roster())

	// Leaving again is a no-op, not an error.
	_, wasBound = p.Leave("conn1")
	assert.False(t, wasBound)

	// The name is free for a new connection now.
	_, err = p.Join("conn2", "alice")
	require.NoError(t, err)
}

func TestPresence_Lookups(t *testing.T) {
	p := NewPresence()

	_, err := p.Join("conn1", "alice")
	require.NoError(t, err)

	name, ok := p.NameOf("conn1")
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	connID, ok := p.ConnectionFor("alice")
	assert.True(t, ok)
	assert.Equal(t, "conn1", connID)

	_, ok = p.NameOf("conn2")
	assert.False(t, ok)
	_, ok = p.ConnectionFor("bob")
	assert.False(t, ok)
}

func TestPresence_ConcurrentJoinsSameName(t *testing.T) {
	const attempts = 32

	p := NewPresence()

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Join(fmt.Sprintf("conn%d", i), "alice")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, ErrUsernameTaken, CodeOf(err))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent join may win the name")
	assert.Equal(t, []string{"alice"}, p.Roster())
}
