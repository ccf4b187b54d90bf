package domain

// Entity is a parent record addressed by a natural key and identified by a
// surrogate ID once persisted.
type Entity interface {
	NaturalKey() string
	Identity() int64
}
