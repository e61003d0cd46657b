package timer

// HV identifies a (height, view) pair, the unit the view-change timer
// fires against. It lives alongside the consensus core but is owned by
// the surrounding service (§1/§5): the core has no deadlines of its own.
type HV struct {
	Height uint32
	View   byte
}
