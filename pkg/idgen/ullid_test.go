package idgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMustGenerateSortableID_Increasing(t *testing.T) {
	prev := MustGenerateSortableID()
	for i := 0; i < 1000; i++ {
		next := MustGenerateSortableID()
		require.Greater(t, next, prev)
		prev = next
	}
}
