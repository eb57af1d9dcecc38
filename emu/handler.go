package emu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/alignfix/insts"
)

// Stage is the progress of one alignment fault through the handler.
type Stage uint8

// Handler stages, in order.
const (
	StageReceived Stage = iota
	StageFetched
	StageClassified
	StageDecoded
	StageEmulated
	StageDone
)

var stageNames = [...]string{
	StageReceived:   "received",
	StageFetched:    "fetched",
	StageClassified: "classified",
	StageDecoded:    "decoded",
	StageEmulated:   "emulated",
	StageDone:       "done",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// HandlerError is returned when a fault could not be fixed up. Stage is the
// last stage reached before the failure.
type HandlerError struct {
	Stage     Stage
	PC        uint64
	FaultAddr uint64
	Word      uint32
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("alignment fault at 0x%X (pc 0x%X, word 0x%08X) failed after %s: %v",
		e.FaultAddr, e.PC, e.Word, e.Stage, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Handler is the entry point called by the trap dispatcher for a
// user-space alignment fault.
type Handler struct {
	emulator *Emulator
	decoder  *insts.Decoder
	trace    *InstructionTrace
	log      logrus.FieldLogger
}

// HandlerOption is a functional option for configuring the Handler.
type HandlerOption func(*Handler)

// WithInstructionTrace records every fetched word in trace.
func WithInstructionTrace(trace *InstructionTrace) HandlerOption {
	return func(h *Handler) {
		h.trace = trace
	}
}

// WithHandlerLogger sets the logger used for rejected faults. The default is
// the emulator's logger.
func WithHandlerLogger(log logrus.FieldLogger) HandlerOption {
	return func(h *Handler) {
		h.log = log
	}
}

// NewHandler creates a handler that emulates through e.
func NewHandler(e *Emulator, opts ...HandlerOption) *Handler {
	h := &Handler{
		emulator: e,
		decoder:  insts.NewDecoder(),
		log:      e.Logger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Emulator returns the handler's emulator.
func (h *Handler) Emulator() *Emulator {
	return h.emulator
}

// HandleAlignmentFault fixes up the alignment fault taken at faultAddr by
// the task whose state is tc. On success the access has been performed and
// the PC points past the faulting instruction. On failure the PC is
// unchanged and the caller should deliver the fault to the task.
func (h *Handler) HandleAlignmentFault(faultAddr uint64, tc TrapContext) error {
	pc := tc.PC()
	fail := func(stage Stage, word uint32, err error) error {
		h.logFailure(faultAddr, pc, word, err)
		return &HandlerError{
			Stage:     stage,
			PC:        pc,
			FaultAddr: faultAddr,
			Word:      word,
			Err:       err,
		}
	}

	word, err := tc.FetchInstruction(pc)
	if err != nil {
		return fail(StageReceived, 0, err)
	}
	if h.trace != nil {
		h.trace.Observe(word, pc)
	}

	stage := StageFetched
	if insts.Classify(word) != insts.ClassUnknown {
		stage = StageClassified
	}

	desc, err := h.decoder.Decode(word)
	if err != nil {
		return fail(stage, word, err)
	}

	desc.Resolve(tc)
	if err := h.emulator.Execute(tc, desc); err != nil {
		return fail(StageDecoded, word, err)
	}

	return nil
}

func (h *Handler) logFailure(faultAddr, pc uint64, word uint32, err error) {
	fields := logrus.Fields{
		"pc":         fmt.Sprintf("0x%X", pc),
		"fault_addr": fmt.Sprintf("0x%X", faultAddr),
	}

	var decodeErr *insts.DecodeError
	if errors.As(err, &decodeErr) {
		fields["word"] = fmt.Sprintf("0x%08X", decodeErr.Word)
		fields["class"] = decodeErr.Class.String()
		fields["reason"] = decodeErr.Reason
		for _, f := range decodeErr.Fields {
			fields[f.Name] = fmt.Sprintf("0x%X", f.Value)
		}
		h.log.WithFields(fields).Warn("cannot emulate misaligned instruction")
		return
	}

	var faultErr *FaultError
	if errors.As(err, &faultErr) {
		fields["addr"] = fmt.Sprintf("0x%X", faultErr.Addr)
	}
	if word != 0 {
		fields["word"] = fmt.Sprintf("0x%08X", word)
	}
	h.log.WithFields(fields).WithError(err).Warn("alignment fixup failed")
}
