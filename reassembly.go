package wsclient

// reassemblyContext tracks an in-progress fragmented data message. Per spec
// section 4.3's fragmented-message delivery policy, the core surfaces each
// fragment individually (zero-copy, a direct view into the ring buffer) —
// so this context does not accumulate payload bytes, only the bookkeeping
// that must survive across fragments: which opcode started the message, and
// (for TEXT) the incremental UTF-8 decoder state.
type reassemblyContext struct {
	inProgress bool
	opcode     opCode
	utf8       utf8Validator
}

func (r *reassemblyContext) begin(op opCode) {
	r.inProgress = true
	r.opcode = op
	r.utf8 = utf8Validator{}
}

func (r *reassemblyContext) reset() {
	r.inProgress = false
}
