package tracing

// SanitizeGasCost detects and corrects corrupted gasCost values from Erigon's
// debug_traceTransaction RPC.
//
// Erigon has an unsigned integer underflow in its call gas computation where
// `availableGas - base` underflows when availableGas < base, producing huge
// corrupted values (e.g. 18158513697557845033).
//
// Detection: gasCost can never legitimately exceed the gas available at that
// opcode. If gasCost > Gas, the value is corrupted and is clamped to Gas,
// matching the behavior of other clients for failed CALL opcodes.
func SanitizeGasCost(frame *TraceFrame) {
	if frame.GasCost > frame.Gas {
		frame.GasCost = frame.Gas
	}
}

// SanitizeFrames applies gas cost sanitization to a whole frame slice.
func SanitizeFrames(frames []TraceFrame) {
	for i := range frames {
		SanitizeGasCost(&frames[i])
	}
}
