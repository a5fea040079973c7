package domain

import (
	"sort"
)

type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// BookSide keeps the best depth levels of one side of the book, unique by price,
// bids descending and asks ascending.
type BookSide struct {
	side   Side
	depth  int
	levels []PriceLevel
}

func NewBookSide(side Side, depth int) *BookSide {
	return &BookSide{
		side:   side,
		depth:  depth,
		levels: make([]PriceLevel, 0, depth),
	}
}

func (bs *BookSide) Side() Side {
	return bs.side
}

// Apply inserts, replaces or removes levels and truncates the result to depth.
// A non-positive quantity removes the price level if present.
func (bs *BookSide) Apply(changes []PriceLevel) {
	for _, change := range changes {
		i, found := bs.search(change)

		if !change.Quantity.IsPositive() {
			if found {
				bs.levels = append(bs.levels[:i], bs.levels[i+1:]...)
			}
			continue
		}

		if found {
			bs.levels[i].Quantity = change.Quantity
			continue
		}

		bs.levels = append(bs.levels, PriceLevel{})
		copy(bs.levels[i+1:], bs.levels[i:])
		bs.levels[i] = change
	}

	bs.limitDepth()
}

func (bs *BookSide) Reset() {
	bs.levels = bs.levels[:0]
}

func (bs *BookSide) Len() int {
	return len(bs.levels)
}

// Levels returns a copy of the current levels in side order.
func (bs *BookSide) Levels() []PriceLevel {
	out := make([]PriceLevel, len(bs.levels))
	copy(out, bs.levels)
	return out
}

func (bs *BookSide) Best() (PriceLevel, bool) {
	if len(bs.levels) == 0 {
		return PriceLevel{}, false
	}
	return bs.levels[0], true
}

// search returns the position of level's price or where it would be inserted.
func (bs *BookSide) search(level PriceLevel) (int, bool) {
	i := sort.Search(len(bs.levels), func(i int) bool {
		cmp := bs.levels[i].Price.Cmp(level.Price)
		if bs.side == SideBid {
			return cmp <= 0
		}
		return cmp >= 0
	})

	return i, i < len(bs.levels) && bs.levels[i].Price.Equal(level.Price)
}

func (bs *BookSide) limitDepth() {
	if bs.depth > 0 && len(bs.levels) > bs.depth {
		bs.levels = bs.levels[:bs.depth]
	}
}
