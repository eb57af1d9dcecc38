package insts

import (
	"errors"
	"fmt"
	"strings"
)

// Decode errors. Every failure returned by Decode wraps one of these.
var (
	// ErrUnrecognized means no supported encoding family matches the word.
	ErrUnrecognized = errors.New("unrecognized encoding")
	// ErrUnsupported means the family matched but the sub-pattern is outside
	// the emulated subset.
	ErrUnsupported = errors.New("unsupported encoding")
)

// RawField is a named classification field, kept for diagnostics.
type RawField struct {
	Name  string
	Value uint32
}

// DecodeError describes why a word could not be decoded.
type DecodeError struct {
	Word   uint32
	Class  Class
	Reason string
	Fields []RawField
	Err    error
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v: 0x%08X (%s): %s", e.Err, e.Word, e.Class, e.Reason)
	for _, f := range e.Fields {
		fmt.Fprintf(&sb, " %s=0x%X", f.Name, f.Value)
	}
	return sb.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Group is the top-level opcode group of an instruction word.
type Group uint8

// Top-level groups.
const (
	GroupOther Group = iota
	GroupLoadStore
	GroupBranchSystem
)

// GroupOf classifies word by its op0 field, bits [28:25].
func GroupOf(word uint32) Group {
	op0 := Field(word, 25, 4)
	switch {
	case op0&0b0101 == 0b0100:
		return GroupLoadStore
	case op0&0b1110 == 0b1010:
		return GroupBranchSystem
	default:
		return GroupOther
	}
}

// lsFields are the load/store classification fields.
type lsFields struct {
	op0 uint32 // bits [31:28]
	op1 uint32 // bit 26
	op2 uint32 // bits [24:23]
	op3 uint32 // bits [21:16]
	op4 uint32 // bits [11:10]
}

func loadStoreFields(word uint32) lsFields {
	return lsFields{
		op0: Field(word, 28, 4),
		op1: Bit(word, 26),
		op2: Field(word, 23, 2),
		op3: Field(word, 16, 6),
		op4: Field(word, 10, 2),
	}
}

func (f lsFields) raw() []RawField {
	return []RawField{
		{"op0", f.op0},
		{"op1", f.op1},
		{"op2", f.op2},
		{"op3", f.op3},
		{"op4", f.op4},
	}
}

// classMatcher recognises one encoding family from its classification
// fields. The matchers of a group are mutually exclusive.
type classMatcher[F any] struct {
	class Class
	match func(F) bool
}

// loadStoreClasses are disjoint on bits [29:28], bit 24, bit 21 and
// bits [11:10].
var loadStoreClasses = []classMatcher[lsFields]{
	{ClassPair, func(f lsFields) bool {
		return f.op0&0b11 == 0b10
	}},
	{ClassCAS, func(f lsFields) bool {
		return f.op0&0b11 == 0b00 && f.op1 == 0 && f.op2 == 0b01 && f.op3&0x20 != 0
	}},
	{ClassUnsignedImm, func(f lsFields) bool {
		return f.op0&0b11 == 0b11 && f.op2&0b10 != 0
	}},
	{ClassRegOffset, func(f lsFields) bool {
		return f.op0&0b11 == 0b11 && f.op2&0b10 == 0 && f.op3&0x20 != 0 && f.op4 == 0b10
	}},
	{ClassUnscaledImm, func(f lsFields) bool {
		return f.op0&0b11 == 0b11 && f.op2&0b10 == 0 && f.op3&0x20 == 0 && f.op4 == 0b00
	}},
}

func classify[F any](matchers []classMatcher[F], f F) Class {
	for _, m := range matchers {
		if m.match(f) {
			return m.class
		}
	}
	return ClassUnknown
}

func classifyLoadStore(f lsFields) Class {
	return classify(loadStoreClasses, f)
}

// sysFields are the branch/exception/system classification fields.
type sysFields struct {
	op0 uint32 // bits [31:29]
	op1 uint32 // bits [25:5]
	op2 uint32 // bits [4:0]
}

func branchSystemFields(word uint32) sysFields {
	return sysFields{
		op0: Field(word, 29, 3),
		op1: Field(word, 5, 21),
		op2: Field(word, 0, 5),
	}
}

func (f sysFields) raw() []RawField {
	return []RawField{
		{"op0", f.op0},
		{"op1", f.op1},
		{"op2", f.op2},
	}
}

var branchSystemClasses = []classMatcher[sysFields]{
	{ClassSystem, func(f sysFields) bool {
		return f.op0 == 0b110 && f.op1&0x1EC000 == 0x84000
	}},
}

func classifyBranchSystem(f sysFields) Class {
	return classify(branchSystemClasses, f)
}

// Classify returns the encoding family of word, or ClassUnknown.
func Classify(word uint32) Class {
	switch GroupOf(word) {
	case GroupLoadStore:
		return classifyLoadStore(loadStoreFields(word))
	case GroupBranchSystem:
		return classifyBranchSystem(branchSystemFields(word))
	default:
		return ClassUnknown
	}
}

// Decoder decodes instruction words that raised an alignment fault.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word into a Descriptor. The returned
// Descriptor still needs Resolve before it can be emulated.
func (d *Decoder) Decode(word uint32) (*Descriptor, error) {
	switch GroupOf(word) {
	case GroupLoadStore:
		f := loadStoreFields(word)
		class := classifyLoadStore(f)
		desc, reason := d.decodeLoadStore(class, word)
		if desc == nil {
			return nil, decodeFailure(word, class, reason, f.raw())
		}
		return desc, nil
	case GroupBranchSystem:
		f := branchSystemFields(word)
		class := classifyBranchSystem(f)
		if class != ClassSystem {
			return nil, decodeFailure(word, class, "not a system instruction", f.raw())
		}
		desc, reason := d.decodeSystem(word)
		if desc == nil {
			return nil, decodeFailure(word, class, reason, systemRaw(word))
		}
		return desc, nil
	default:
		return nil, &DecodeError{
			Word:   word,
			Reason: "not a load/store or system instruction",
			Fields: []RawField{{"op0", Field(word, 25, 4)}},
			Err:    ErrUnrecognized,
		}
	}
}

func (d *Decoder) decodeLoadStore(class Class, word uint32) (*Descriptor, string) {
	switch class {
	case ClassPair:
		return d.decodePair(word)
	case ClassCAS:
		return d.decodeCAS(word)
	case ClassUnsignedImm:
		return d.decodeUnsignedImm(word)
	case ClassRegOffset:
		return d.decodeRegOffset(word)
	case ClassUnscaledImm:
		return d.decodeUnscaledImm(word)
	default:
		return nil, "no load/store family matches"
	}
}

func decodeFailure(word uint32, class Class, reason string, fields []RawField) error {
	err := ErrUnsupported
	if class == ClassUnknown {
		err = ErrUnrecognized
	}
	return &DecodeError{
		Word:   word,
		Class:  class,
		Reason: reason,
		Fields: fields,
		Err:    err,
	}
}
