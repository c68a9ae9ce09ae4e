package tlb

// DTB is the Data Translation Buffer: a TLB instance mmu.Translate
// consults for AccessRead/AccessWrite/AccessModify translations.
type DTB struct {
	*TLB
}

// NewDTB creates an empty Data Translation Buffer.
func NewDTB() *DTB {
	return &DTB{TLB: New()}
}
