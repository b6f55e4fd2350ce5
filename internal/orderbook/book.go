package orderbook

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/shopspring/decimal"
)

func decimalComparator(a, b interface{}) int {
	d1 := a.(decimal.Decimal)
	d2 := b.(decimal.Decimal)
	return d1.Cmp(d2)
}

// Level is one price level of a depth read. The price is the verbatim
// upstream string; Cumulative sums sizes from the best level outward.
type Level struct {
	Price      string          `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Cumulative decimal.Decimal `json:"cumulativeSize"`
}

// bookEntry is the stored value per price. The verbatim price string rides
// along so reads render exactly what the upstream sent.
type bookEntry struct {
	priceStr string
	size     decimal.Decimal
}

// BookSide holds one side of the book in a treemap keyed by the parsed
// decimal price. Comparing parsed decimals makes deletes idempotent across
// formatting ("10" and "10.0" address the same level).
type BookSide struct {
	levels *treemap.Map
	ask    bool
}

func newBookSide(ask bool) *BookSide {
	return &BookSide{
		levels: treemap.NewWith(decimalComparator),
		ask:    ask,
	}
}

// Update applies one [price, qty] pair. Quantity zero removes the level;
// removing an absent level is a no-op.
func (s *BookSide) Update(priceStr, qtyStr string) error {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", priceStr, err)
	}
	qty, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", qtyStr, err)
	}

	if qty.IsZero() {
		s.levels.Remove(price)
		return nil
	}
	s.levels.Put(price, bookEntry{priceStr: priceStr, size: qty})
	return nil
}

// ReplaceAll resets the side to the given [price, qty] pairs, skipping zero
// quantities so the no-zero-entries invariant holds from the start.
func (s *BookSide) ReplaceAll(levels [][]string) error {
	s.levels.Clear()
	for _, level := range levels {
		if len(level) < 2 {
			return fmt.Errorf("level needs [price, qty], got %v", level)
		}
		if err := s.Update(level[0], level[1]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDiff applies a batch of [price, qty] pairs.
func (s *BookSide) ApplyDiff(levels [][]string) error {
	for _, level := range levels {
		if len(level) < 2 {
			return fmt.Errorf("level needs [price, qty], got %v", level)
		}
		if err := s.Update(level[0], level[1]); err != nil {
			return err
		}
	}
	return nil
}

// Best returns the top-of-book price, zero when the side is empty.
func (s *BookSide) Best() (decimal.Decimal, bool) {
	if s.levels.Empty() {
		return decimal.Zero, false
	}
	if s.ask {
		price, _ := s.levels.Min()
		return price.(decimal.Decimal), true
	}
	price, _ := s.levels.Max()
	return price.(decimal.Decimal), true
}

// Depth returns the top n levels from the best price outward, with running
// cumulative size.
func (s *BookSide) Depth(n int) []Level {
	book := make([]Level, 0, n)
	cumulative := decimal.Zero

	it := s.levels.Iterator()
	if s.ask {
		for it.Next() {
			entry := it.Value().(bookEntry)
			cumulative = cumulative.Add(entry.size)
			book = append(book, Level{Price: entry.priceStr, Size: entry.size, Cumulative: cumulative})
			if len(book) >= n {
				break
			}
		}
		return book
	}

	for it.End(); it.Prev(); {
		entry := it.Value().(bookEntry)
		cumulative = cumulative.Add(entry.size)
		book = append(book, Level{Price: entry.priceStr, Size: entry.size, Cumulative: cumulative})
		if len(book) >= n {
			break
		}
	}
	return book
}

// Len returns the number of levels on the side.
func (s *BookSide) Len() int {
	return s.levels.Size()
}

// Clear empties the side.
func (s *BookSide) Clear() {
	s.levels.Clear()
}
