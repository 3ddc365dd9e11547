package uniqueid

import "sync"

// UniqueID entrega identificadores crecientes que nunca se reutilizan.
type UniqueID struct {
	mu     sync.Mutex
	nextID int
}

func Init(primero int) *UniqueID {
	return &UniqueID{nextID: primero}
}

func (u *UniqueID) GetUniqueID() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	id := u.nextID
	u.nextID++
	return id
}
