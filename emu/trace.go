package emu

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// InstructionTrace records every distinct instruction word that reached the
// handler and logs each one the first time it is seen. It is safe for
// concurrent use by handlers running on different tasks.
type InstructionTrace struct {
	seen mapset.Set[uint32]
	log  logrus.FieldLogger
}

// NewInstructionTrace creates an empty trace.
func NewInstructionTrace(log logrus.FieldLogger) *InstructionTrace {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InstructionTrace{
		seen: mapset.NewSet[uint32](),
		log:  log,
	}
}

// Observe records word and reports whether it was new.
func (t *InstructionTrace) Observe(word uint32, pc uint64) bool {
	if !t.seen.Add(word) {
		return false
	}
	t.log.WithFields(logrus.Fields{
		"word": fmt.Sprintf("0x%08X", word),
		"pc":   fmt.Sprintf("0x%X", pc),
	}).Info("new misaligned instruction")
	return true
}

// Len returns the number of distinct words seen.
func (t *InstructionTrace) Len() int {
	return t.seen.Cardinality()
}

// Words returns the distinct words seen, in ascending order.
func (t *InstructionTrace) Words() []uint32 {
	words := t.seen.ToSlice()
	sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
	return words
}

// Reset forgets every word seen so far.
func (t *InstructionTrace) Reset() {
	t.seen.Clear()
}
