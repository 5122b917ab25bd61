package board

import "testing"

func TestPLICFindsNamedWindow(t *testing.T) {
	b := Board{MMIO: []MMIOWindow{
		{Name: "uart0", Base: 0x10000000, Size: 0x100},
		{Name: "plic", Base: 0x0C000000, Size: 0x04000000},
	}}

	w, ok := b.PLIC()
	if !ok {
		t.Fatalf("expected a plic window to be found")
	}
	if w.Base != 0x0C000000 || w.Size != 0x04000000 {
		t.Fatalf("unexpected plic window: %+v", w)
	}
}

func TestPLICReportsAbsence(t *testing.T) {
	b := Board{MMIO: []MMIOWindow{{Name: "uart0", Base: 0x10000000, Size: 0x100}}}
	if _, ok := b.PLIC(); ok {
		t.Fatalf("expected no plic window for a board that lacks one")
	}
}
