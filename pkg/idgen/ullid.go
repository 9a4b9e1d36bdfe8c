package idgen

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewSortableID returns a ULID for the current time. IDs generated within the
// same millisecond are strictly increasing.
func NewSortableID() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func MustGenerateSortableID() string {
	id, err := NewSortableID()
	if err != nil {
		panic(err)
	}
	return id
}
