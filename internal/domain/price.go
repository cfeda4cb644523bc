package domain

// Direction represents the price movement direction
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

// PriceState holds the last observed ticker of one symbol and how it moved.
type PriceState struct {
	Ticker    Ticker
	HasValue  bool
	Direction Direction
	UpdatedAt int64 // unix ms
}

// Update applies a new ticker. Returns true if the price changed
// (or this is the first value).
func (ps *PriceState) Update(t Ticker, ts int64) bool {
	if !ValidPrice(t.Price) {
		return false
	}

	if !ps.HasValue {
		ps.HasValue = true
		ps.Ticker = t
		ps.Direction = DirectionSame
		ps.UpdatedAt = ts
		return true
	}

	prev := ps.Ticker.Price
	ps.Ticker = t
	ps.UpdatedAt = ts
	switch {
	case t.Price > prev:
		ps.Direction = DirectionUp
	case t.Price < prev:
		ps.Direction = DirectionDown
	default:
		// keep showing the last move; nothing new to render
		return false
	}
	return true
}
