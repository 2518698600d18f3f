package ledger

import (
	"sync"

	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/spaolacci/murmur3"
)

const defaultLockStripes = 256

// lockTable serializes operations per address. Addresses are hashed onto a fixed
// set of mutexes, so two addresses may share a stripe but one address always maps
// to the same one.
type lockTable struct {
	stripes []sync.Mutex
}

func newLockTable(n int) *lockTable {
	if n <= 0 {
		n = defaultLockStripes
	}
	return &lockTable{stripes: make([]sync.Mutex, n)}
}

func (t *lockTable) stripe(address model.Address) *sync.Mutex {
	h := murmur3.Sum32([]byte(address))
	return &t.stripes[h%uint32(len(t.stripes))]
}

// lock acquires the stripe for address and returns its release func.
func (t *lockTable) lock(address model.Address) func() {
	m := t.stripe(address)
	m.Lock()
	return m.Unlock
}
