package guest

import "testing"

func TestNewRegistersGuest(t *testing.T) {
	g := New(0, nil, 0x80200000, Metadata{MemoryBase: 0x80000000, MemorySize: 0x1000000})
	if g.ID != 0 || g.Entry != 0x80200000 {
		t.Fatalf("unexpected guest fields: %+v", g)
	}
}

func TestPushAndDrainEvents(t *testing.T) {
	g := New(0, nil, 0, Metadata{})

	if events := g.DrainEvents(); events != nil {
		t.Fatalf("expected no pending events initially, got %v", events)
	}

	g.PushEvent(EventExternalIRQ)
	g.PushEvent(EventTimerIRQ)

	events := g.DrainEvents()
	if len(events) != 2 || events[0] != EventExternalIRQ || events[1] != EventTimerIRQ {
		t.Fatalf("unexpected drained events: %v", events)
	}

	if events := g.DrainEvents(); events != nil {
		t.Fatalf("expected events cleared after drain, got %v", events)
	}
}
