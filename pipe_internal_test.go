package sp

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendHeapOrdering(t *testing.T) {
	var h sendHeap
	heap.Init(&h)
	heap.Push(&h, &sendRequest{priority: 1, seq: 2})
	heap.Push(&h, &sendRequest{priority: 5, seq: 1})
	heap.Push(&h, &sendRequest{ctrl: true, seq: 3})
	heap.Push(&h, &sendRequest{priority: 5, seq: 0})

	var order []uint64
	for h.Len() > 0 {
		order = append(order, heap.Pop(&h).(*sendRequest).seq)
	}
	// control frame first, then priority 5 frames in submission order,
	// then the lone priority 1 frame.
	require.Equal(t, []uint64{3, 0, 1, 2}, order)
}
