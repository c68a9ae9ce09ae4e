package tlb

// ITB is the Instruction Translation Buffer: a TLB instance consulted by
// the fetch engine for AccessFetch translations only.
type ITB struct {
	*TLB
}

// NewITB creates an empty Instruction Translation Buffer.
func NewITB() *ITB {
	return &ITB{TLB: New()}
}
