// Package chain implements the hash-chain signed-entry protocol.
//
// Each entry carries the hash of its predecessor and a signature over the
// SHA-256 of its own entry hash. The entry hash is the SHA-256 of the
// canonical JSON of every field except entryHash and sig, so altering,
// removing or reordering any entry breaks the chain at that point.
package chain

import "strings"

// Version is the entry format version.
const Version = 1

// Genesis is the prevHash of the first entry in a stream.
var Genesis = strings.Repeat("0", 64)

// State is the running position of a chain.
//
// State is owned by a single writer and is not safe for concurrent use.
type State struct {
	nextSeq  uint64
	prevHash string
}

// NewState returns the state of a fresh chain.
func NewState() *State {
	return &State{nextSeq: 1, prevHash: Genesis}
}

// Resume returns a state that continues after an entry with seq nextSeq-1
// and hash prevHash.
func Resume(nextSeq uint64, prevHash string) *State {
	if nextSeq == 0 {
		nextSeq = 1
	}
	if prevHash == "" {
		prevHash = Genesis
	}
	return &State{nextSeq: nextSeq, prevHash: prevHash}
}

// NextSeq returns the sequence number the next entry will receive.
func (s *State) NextSeq() uint64 {
	return s.nextSeq
}

// PrevHash returns the hash the next entry will link to.
func (s *State) PrevHash() string {
	return s.prevHash
}

// advance records a committed entry.
func (s *State) advance(entryHash string) {
	s.nextSeq++
	s.prevHash = entryHash
}
