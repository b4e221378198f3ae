package clock

import "testing"

func TestIsMCycle(t *testing.T) {
	c := New()
	var mCycles int
	for i := 0; i < 16; i++ {
		c.Tick()
		if c.IsMCycle() {
			mCycles++
		}
	}
	if mCycles != 4 {
		t.Errorf("mCycles = %d; want 4", mCycles)
	}
}

func TestIsAPUCycle(t *testing.T) {
	c := New()
	var apuCycles int
	for i := 0; i < 8; i++ {
		c.Tick()
		if c.IsAPUCycle() {
			apuCycles++
		}
	}
	if apuCycles != 4 {
		t.Errorf("apuCycles = %d; want 4", apuCycles)
	}
}

func TestElapsedNanosAccumulatesRemainder(t *testing.T) {
	c := New()
	var total uint64
	for i := 0; i < Frequency; i++ {
		total += c.ElapsedNanos(1)
	}
	if total != 1e9 {
		t.Errorf("total nanos for one second of T-cycles = %d; want 1e9", total)
	}
}
