// Package midiutil provides small MIDI-protocol helpers layered on top
// of gitlab.com/gomidi/midi/v2 that the channel state machine needs:
// the default controller table and RPN/NRPN data-entry tracking.
package midiutil

// Well-known CC numbers used by the channel state machine (spec.md
// §4.5). gomidi/v2 exposes these as untyped constants on midi.CC*; this
// subset is named here for readability at call sites that don't import
// the whole midi package.
const (
	CCBankSelectMSB     = 0
	CCModWheel          = 1
	CCPan               = 10
	CCExpression        = 11
	CCEffects1Depth     = 91 // reverb send
	CCEffects3Depth     = 93 // chorus send
	CCDataEntryMSB      = 6
	CCMainVolume        = 7
	CCDataEntryLSB      = 38
	CCNRPNLSB           = 98
	CCNRPNMSB           = 99
	CCRPNLSB            = 100
	CCRPNMSB            = 101
	CCSustainPedal      = 64
	CCAllSoundOff       = 120
	CCResetAllControllers = 121
	CCBankSelectLSB     = 32
	CCAllNotesOff       = 123
	CCRelease           = 72
	CCBrightness        = 74
)

// NumControllers is the size of the fixed controller array every
// Channel owns (spec.md §9 design note: "fixed-length arrays sized to
// the controller space (128)").
const NumControllers = 128

// defaultControllers holds the SF2/GM power-on default values for the
// 128-entry controller array (spec.md §3: "main volume 100, expression
// 127, pan 64, release time 64, brightness 64, effects1Depth 40; all
// others 0"). It is an immutable, compile-time table shared by value —
// copy it into a Channel, never mutate this package var.
var defaultControllers = buildDefaultControllers()

func buildDefaultControllers() [NumControllers]uint8 {
	var c [NumControllers]uint8
	c[CCMainVolume] = 100
	c[CCExpression] = 127
	c[CCPan] = 64
	c[CCRelease] = 64
	c[CCBrightness] = 64
	c[CCEffects1Depth] = 40
	return c
}

// DefaultControllers returns a fresh copy of the default controller
// table, safe for the caller to mutate.
func DefaultControllers() [NumControllers]uint8 {
	return defaultControllers
}

// LockedControllerBitset marks which controller indices
// resetAllControllers must not touch (spec.md §4.5: "restore defaults
// except locked bits"). Bank select and RPN/NRPN pointer registers are
// conventionally locked since a DAW expects them to survive a reset.
type LockedControllerBitset [NumControllers]bool

// DefaultLocked returns the conventional set of controllers left
// untouched by resetAllControllers.
func DefaultLocked() LockedControllerBitset {
	var locked LockedControllerBitset
	locked[CCBankSelectMSB] = true
	locked[CCBankSelectLSB] = true
	locked[CCRPNMSB] = true
	locked[CCRPNLSB] = true
	locked[CCNRPNMSB] = true
	locked[CCNRPNLSB] = true
	return locked
}
