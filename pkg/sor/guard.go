package sor

// sizeGuard tracks the cheap approximate byte total of an open mutation
// batch. The approximate ceiling is the single-delta maximum, well under
// the frame limit, so the expensive exact serialization in the writer
// only runs for batches genuinely near the ceiling. The running total is
// kept accurate across false positives so the exact check re-arms on
// every subsequent row.
type sizeGuard struct {
	approx  int
	ceiling int
}

func newSizeGuard(cfg Config) *sizeGuard {
	return &sizeGuard{ceiling: cfg.MaxDeltaSize}
}

// nearCeiling reports whether adding next bytes would push the
// approximate total over the ceiling, demanding an exact check.
func (g *sizeGuard) nearCeiling(next int) bool {
	return g.approx+next > g.ceiling
}

// add records the bytes of a row added to the batch.
func (g *sizeGuard) add(n int) { g.approx += n }

// reset clears the total after the batch is executed.
func (g *sizeGuard) reset() { g.approx = 0 }
