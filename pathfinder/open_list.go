package pathfinder

import (
	"container/heap"

	"gridless-router/geometry"
)

// DiscoveredNode is a point reached by the search
type DiscoveredNode struct {
	Point     geometry.Point
	Cost      float64         // Cost from source to this point (g)
	Estimated float64         // Cost plus heuristic to destination (f)
	Previous  *geometry.Point // nil for the source
}

type queueItem struct {
	node  DiscoveredNode
	index int // Index in the heap
}

// nodeHeap implements heap.Interface ordered by estimated cost
type nodeHeap []*queueItem

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	return h[i].node.Estimated < h[j].node.Estimated
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// OpenList is the search frontier. It holds at most one entry per point and
// supports decrease-key: pushing a known point replaces its entry only when
// the new cost is strictly lower. Order among equal estimates is unspecified.
type OpenList struct {
	items   nodeHeap
	byPoint map[geometry.Point]*queueItem
}

// NewOpenList creates an empty frontier
func NewOpenList() *OpenList {
	return &OpenList{byPoint: make(map[geometry.Point]*queueItem)}
}

// Len returns the number of entries
func (q *OpenList) Len() int {
	return len(q.items)
}

// Contains reports whether the point is in the frontier
func (q *OpenList) Contains(p geometry.Point) bool {
	_, ok := q.byPoint[p]
	return ok
}

// Push inserts a node or lowers the cost of an existing entry. It reports
// whether the frontier changed.
func (q *OpenList) Push(node DiscoveredNode) bool {
	if item, ok := q.byPoint[node.Point]; ok {
		if node.Cost >= item.node.Cost {
			return false
		}
		item.node = node
		heap.Fix(&q.items, item.index)
		return true
	}

	item := &queueItem{node: node}
	heap.Push(&q.items, item)
	q.byPoint[node.Point] = item
	return true
}

// Pop removes and returns the entry with the lowest estimated cost
func (q *OpenList) Pop() (DiscoveredNode, bool) {
	if len(q.items) == 0 {
		return DiscoveredNode{}, false
	}
	item := heap.Pop(&q.items).(*queueItem)
	delete(q.byPoint, item.node.Point)
	return item.node, true
}

// Clear drops every entry
func (q *OpenList) Clear() {
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
	clear(q.byPoint)
}
