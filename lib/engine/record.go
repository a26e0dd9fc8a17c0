package engine

// Record is the envelope persisted for every stored entry. The engine
// requires records to be self-keyed: the logical key travels inside the
// record alongside the caller's opaque value, so a decoded record never
// depends on where it was stored. Callers of the store facade only ever
// see the bare Value.
type Record struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}
