package models

// VoteResult is one entry of a vote tally. Derived, never stored; recomputed
// on every tally.
type VoteResult struct {
	Target string
	Votes  int
}
