package testutil

// ConstantIDs returns the same request ID every time.
//
// Unlike source.FixedGenerator, which hands out a sequence and panics when
// it runs out, ConstantIDs never runs out. Use it to make every cycle
// collide on one ID, for example to exercise idempotent audit writes.
//
// Thread-safety: ConstantIDs is stateless and safe for concurrent use.
type ConstantIDs struct {
	id string
}

// NewConstantIDs creates a generator for id. An empty id becomes
// "test-request".
func NewConstantIDs(id string) *ConstantIDs {
	if id == "" {
		id = "test-request"
	}
	return &ConstantIDs{id: id}
}

// Generate returns the fixed ID. Implements source.IDGenerator.
func (g *ConstantIDs) Generate() string {
	return g.id
}
