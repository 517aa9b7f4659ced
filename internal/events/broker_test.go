package events

import (
	"testing"
)

func TestBroker_ProjectFilter(t *testing.T) {
	b := NewBroker(nil)

	matched := b.Subscribe("proj-1")
	other := b.Subscribe("proj-2")
	all := b.Subscribe("")
	defer b.Unsubscribe(matched)
	defer b.Unsubscribe(other)
	defer b.Unsubscribe(all)

	b.Publish(Event{Type: TypeBuildStarted, ProjectID: "proj-1"})

	select {
	case e := <-matched.Ch:
		if e.Type != TypeBuildStarted {
			t.Errorf("event type = %s", e.Type)
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp not stamped on publish")
		}
	default:
		t.Fatal("matching subscriber received nothing")
	}

	select {
	case e := <-other.Ch:
		t.Errorf("proj-2 subscriber received %v", e)
	default:
	}

	select {
	case <-all.Ch:
	default:
		t.Error("wildcard subscriber received nothing")
	}
}

func TestBroker_TypeFilter(t *testing.T) {
	b := NewBroker(nil)

	sub := b.Subscribe("proj-1", TypeBuildFailed, TypeFixCompleted)
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: TypeStatus, ProjectID: "proj-1"})
	b.Publish(Event{Type: TypeFixCompleted, ProjectID: "proj-1"})

	select {
	case e := <-sub.Ch:
		if e.Type != TypeFixCompleted {
			t.Errorf("event type = %s, want FIX_COMPLETED", e.Type)
		}
	default:
		t.Fatal("filtered subscriber received nothing")
	}

	select {
	case e := <-sub.Ch:
		t.Errorf("unexpected second event %v", e)
	default:
	}
}

func TestBroker_FullChannelDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker(nil)

	sub := b.Subscribe("proj-1")
	defer b.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(sub.Ch)+10; i++ {
			b.Publish(Event{Type: TypeStatus, ProjectID: "proj-1"})
		}
	}()

	<-done
	if n := len(sub.Ch); n != cap(sub.Ch) {
		t.Errorf("buffered events = %d, want %d", n, cap(sub.Ch))
	}
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(nil)

	sub := b.Subscribe("proj-1")
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // idempotent

	if _, ok := <-sub.Ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d", b.SubscriberCount())
	}
}

func TestEventTerminal(t *testing.T) {
	if (Event{Type: TypeBuildFailed}).Terminal() {
		t.Error("BUILD_FAILED marked terminal")
	}
	for _, typ := range []Type{TypeProjectComplete, TypeProjectFailed, TypeProjectCancelled} {
		if !(Event{Type: typ}).Terminal() {
			t.Errorf("%s not marked terminal", typ)
		}
	}
}
