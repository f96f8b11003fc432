package settle

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// nonceLocks is the advisory per-(authorizer, nonce) mutual exclusion held
// for the duration of one settlement attempt. It only saves gas on
// submissions doomed to revert; the relayer contract remains the ultimate
// replay authority regardless.
type nonceLocks struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newNonceLocks() *nonceLocks {
	return &nonceLocks{inFlight: make(map[string]struct{})}
}

func lockKey(authorizer common.Address, nonce [32]byte) string {
	return fmt.Sprintf("%s:%x", authorizer.Hex(), nonce)
}

// tryAcquire marks the pair in flight. Returns false if another settlement
// for the same pair is already running in this process.
func (l *nonceLocks) tryAcquire(authorizer common.Address, nonce [32]byte) bool {
	key := lockKey(authorizer, nonce)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.inFlight[key]; held {
		return false
	}
	l.inFlight[key] = struct{}{}
	return true
}

func (l *nonceLocks) release(authorizer common.Address, nonce [32]byte) {
	key := lockKey(authorizer, nonce)
	l.mu.Lock()
	delete(l.inFlight, key)
	l.mu.Unlock()
}
