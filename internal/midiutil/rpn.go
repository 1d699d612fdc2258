package midiutil

// RPN parameter numbers defined by the MIDI 1.0 spec that this engine
// understands (spec.md §4.5: "on dataEntry with active RPN/NRPN, update
// pitch-bend range, master tuning, etc.").
const (
	RPNPitchBendRange   = 0
	RPNFineTuning       = 1
	RPNCoarseTuning     = 2
	rpnNull             = 0x7F7F // MSB/LSB both 0x7F deselects RPN/NRPN
)

// ParamKind identifies what a completed data-entry write affects.
type ParamKind int

const (
	ParamNone ParamKind = iota
	ParamPitchBendRangeSemis
	ParamPitchBendRangeCents
	ParamMasterFineTuningCents
	ParamMasterCoarseTuningSemis
	ParamNRPN // vendor/GM NRPN; the returned int value is left for the caller to interpret (e.g. GS drum-part toggles)
)

// RPNState tracks the RPN/NRPN "pointer" registers (CC 100/101/98/99)
// and the 14-bit data-entry value accumulated via CC 6/38, per channel.
// Selecting CC101/100 with both bytes 0x7F nulls the pointer so stray
// CC6/38 data doesn't land anywhere, per the MIDI spec.
type RPNState struct {
	rpnMSB, rpnLSB   uint8
	nrpnMSB, nrpnLSB uint8
	haveRPN          bool
	haveNRPN         bool
	activeIsRPN      bool // true if RPN was selected more recently than NRPN

	dataMSB uint8
}

// NewRPNState returns an RPNState with nothing selected.
func NewRPNState() RPNState {
	return RPNState{}
}

// SelectRPNMSB / SelectRPNLSB / SelectNRPNMSB / SelectNRPNLSB record the
// pointer-register CCs (100/101/98/99). Each also marks RPN or NRPN as
// the "active" family for subsequent data-entry CCs.
func (s *RPNState) SelectRPNMSB(v uint8) { s.rpnMSB = v; s.haveRPN = true; s.activeIsRPN = true }
func (s *RPNState) SelectRPNLSB(v uint8) { s.rpnLSB = v; s.haveRPN = true; s.activeIsRPN = true }
func (s *RPNState) SelectNRPNMSB(v uint8) { s.nrpnMSB = v; s.haveNRPN = true; s.activeIsRPN = false }
func (s *RPNState) SelectNRPNLSB(v uint8) { s.nrpnLSB = v; s.haveNRPN = true; s.activeIsRPN = false }

func (s *RPNState) selectedRPN() (int, bool) {
	if !s.haveRPN {
		return 0, false
	}
	v := int(s.rpnMSB)<<8 | int(s.rpnLSB)
	if v == rpnNull {
		return 0, false
	}
	return v, true
}

// DataEntryMSB handles CC 6; it returns the parameter this write
// affects and the raw 14-bit-or-7-bit value, ready for the Channel to
// apply. Channels that want only MSB precision can act immediately;
// ones that want full precision should wait for a following
// DataEntryLSB.
func (s *RPNState) DataEntryMSB(v uint8) (ParamKind, int) {
	s.dataMSB = v
	return s.resolveParam(int(v) << 7)
}

// DataEntryLSB handles CC 38, combining with the most recent MSB for
// full 14-bit precision.
func (s *RPNState) DataEntryLSB(v uint8) (ParamKind, int) {
	return s.resolveParam(int(s.dataMSB)<<7 | int(v))
}

func (s *RPNState) resolveParam(value14 int) (ParamKind, int) {
	if s.activeIsRPN {
		rpn, ok := s.selectedRPN()
		if !ok {
			return ParamNone, 0
		}
		switch rpn {
		case RPNPitchBendRange:
			// MSB = semitones, LSB = cents; both DataEntryMSB and
			// DataEntryLSB report ParamPitchBendRangeCents with the
			// combined 14-bit value.
			return ParamPitchBendRangeCents, value14
		case RPNFineTuning:
			// 14-bit value centered at 8192 = 0 cents, +/-100 cents
			// full scale (MIDI Tuning Standard convention).
			return ParamMasterFineTuningCents, value14 - 8192
		case RPNCoarseTuning:
			return ParamMasterCoarseTuningSemis, (value14 >> 7) - 64
		}
		return ParamNone, 0
	}

	if !s.haveNRPN {
		return ParamNone, 0
	}
	return ParamNRPN, int(s.nrpnMSB)<<7 | int(s.nrpnLSB)
}

// Reset clears all pointer/value state, for resetAllControllers.
func (s *RPNState) Reset() {
	*s = RPNState{}
}
