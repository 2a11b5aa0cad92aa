package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialStore_RegisterTwiceKeepsFirstDigest(t *testing.T) {
	req := require.New(t)
	store := NewCredentialStore(stubHasher{})

	req.NoError(store.Register("alice", "first"))
	req.ErrorIs(store.Register("alice", "second"), ErrAlreadyExists)

	digest, ok := store.digestOf("alice")
	req.True(ok)
	req.Equal("stub:first", digest)
	req.Equal(1, store.Len())
}

func TestCredentialStore_UsernamesAreCaseSensitive(t *testing.T) {
	req := require.New(t)
	store := NewCredentialStore(stubHasher{})

	req.NoError(store.Register("alice", "pw"))
	req.NoError(store.Register("Alice", "pw"))
	req.Equal(2, store.Len())
}

func TestCredentialStore_Verify(t *testing.T) {
	req := require.New(t)
	store := NewCredentialStore(stubHasher{})
	req.NoError(store.Register("alice", "correct"))

	identity, err := store.Verify("alice", "correct")
	req.NoError(err)
	req.Equal("alice", identity.Username)

	_, err = store.Verify("alice", "wrong")
	req.ErrorIs(err, ErrMismatch)

	_, err = store.Verify("bob", "anything")
	req.ErrorIs(err, ErrNotFound)
}

func TestCredentialStore_HashFailure(t *testing.T) {
	req := require.New(t)
	store := NewCredentialStore(stubHasher{err: errHashBroken})

	err := store.Register("alice", "pw")
	req.ErrorIs(err, errHashBroken)
	req.Equal(0, store.Len())
}

func TestCredentialStore_ConcurrentRegisterSameUsername(t *testing.T) {
	for round := 0; round < 20; round++ {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			store := NewCredentialStore(stubHasher{})

			const racers = 8
			results := make(chan error, racers)
			var start sync.WaitGroup
			start.Add(1)
			for i := 0; i < racers; i++ {
				go func(i int) {
					start.Wait()
					results <- store.Register("carol", fmt.Sprintf("p%d", i))
				}(i)
			}
			start.Done()

			var succeeded, conflicts int
			for i := 0; i < racers; i++ {
				err := <-results
				switch {
				case err == nil:
					succeeded++
				default:
					require.ErrorIs(t, err, ErrAlreadyExists)
					conflicts++
				}
			}
			require.Equal(t, 1, succeeded)
			require.Equal(t, racers-1, conflicts)
		})
	}
}
