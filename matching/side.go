package matching

import (
	"container/list"

	"github.com/google/btree"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// side is one of the book's two halves. Both bids and asks keep their
// levels tree ascending by price; which end is "best" depends on kind.
type side struct {
	kind   types.Side
	levels *btree.BTree
}

func newSide(kind types.Side) *side {
	return &side{kind: kind, levels: btree.New(32)}
}

func (s *side) getOrCreate(price *num.Uint) *level {
	probe := &level{price: price}
	if item := s.levels.Get(probe); item != nil {
		return item.(*level)
	}
	l := newLevel(price)
	s.levels.ReplaceOrInsert(l)
	return l
}

func (s *side) dropIfEmpty(l *level) {
	if l.empty() {
		s.levels.Delete(l)
	}
}

// best returns the level a taker on the opposite side would meet first:
// the highest bid, or the lowest ask.
func (s *side) best() (*level, bool) {
	var item btree.Item
	if s.kind == types.Buy {
		item = s.levels.Max()
	} else {
		item = s.levels.Min()
	}
	if item == nil {
		return nil, false
	}
	return item.(*level), true
}

// crosses reports whether a taker at takerPrice on the opposite side
// reaches l, per spec.md §4.3 point 3: a Buy crosses any ask bucket with
// bucket price <= P_in; a Sell crosses any bid bucket with bucket price
// >= P_in. s is the resting side being probed (asks for an incoming buy).
func (s *side) crosses(l *level, takerPrice *num.Uint) bool {
	if s.kind == types.Sell {
		return l.price.LTE(takerPrice)
	}
	return l.price.GTE(takerPrice)
}

func (s *side) isEmpty() bool {
	return s.levels.Len() == 0
}

// walk visits resting levels in the order a taker would meet them: best
// price first. visit returning false stops the traversal.
func (s *side) walk(visit func(*level) bool) {
	if s.kind == types.Buy {
		s.levels.Descend(func(i btree.Item) bool { return visit(i.(*level)) })
	} else {
		s.levels.Ascend(func(i btree.Item) bool { return visit(i.(*level)) })
	}
}

// all returns every resting LimitOrder across every level, in no
// particular cross-level order; callers needing time order sort
// afterwards (used by Reaggregate, which re-derives ordering from each
// order's own timestamp/id).
func (s *side) all() []*types.LimitOrder {
	out := make([]*types.LimitOrder, 0, s.levels.Len())
	s.levels.Ascend(func(i btree.Item) bool {
		l := i.(*level)
		for e := l.front(); e != nil; e = e.Next() {
			out = append(out, e.Value.(*types.LimitOrder))
		}
		return true
	})
	return out
}

func (s *side) clear() {
	s.levels = btree.New(32)
}

// entry is the cancel/fill index record kept by book for O(log n) lookup
// by OrderID regardless of which level an order currently rests in.
type entry struct {
	level *level
	elem  *list.Element
}
