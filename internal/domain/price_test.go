package domain

import (
	"math"
	"testing"
)

func TestPriceStateUpdate(t *testing.T) {
	var ps PriceState

	if !ps.Update(Ticker{Price: 100}, 1) {
		t.Fatal("first valid price should report a change")
	}
	if ps.Direction != DirectionSame {
		t.Errorf("expected DirectionSame after first value, got %v", ps.Direction)
	}

	if !ps.Update(Ticker{Price: 101}, 2) || ps.Direction != DirectionUp {
		t.Errorf("expected up move, got %v", ps.Direction)
	}
	if !ps.Update(Ticker{Price: 99}, 3) || ps.Direction != DirectionDown {
		t.Errorf("expected down move, got %v", ps.Direction)
	}
	if ps.Update(Ticker{Price: 99, ChangePercent: 1.5}, 4) {
		t.Error("same price should not report a change")
	}
	if ps.Ticker.ChangePercent != 1.5 || ps.UpdatedAt != 4 {
		t.Errorf("ticker fields should still refresh, got %+v", ps)
	}
}

func TestPriceStateIgnoresInvalid(t *testing.T) {
	var ps PriceState
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if ps.Update(Ticker{Price: p}, 1) {
			t.Errorf("price %v should be ignored", p)
		}
	}
	if ps.HasValue {
		t.Error("state should stay empty")
	}
}
