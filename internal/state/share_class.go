package state

// ShareClass is a fixed-supply asset category. The cap is immutable after
// creation; circulating supply moves only through mint and burn and never
// exceeds the cap. One class exists per asset kind.
type ShareClass struct {
	AssetKind         string
	TotalSupplyCap    uint64
	CirculatingSupply uint64
	Burnable          bool

	// Version increments on every supply mutation.
	Version int64
}

// Remaining returns the amount still mintable under the cap.
func (sc *ShareClass) Remaining() uint64 {
	return sc.TotalSupplyCap - sc.CirculatingSupply
}
