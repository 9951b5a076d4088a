package live

import (
	"errors"
	"testing"
	"time"

	"github.com/petrel-labs/liveboard/pkg/livedto"
)

func TestPublishDeliversInOrder(t *testing.T) {
	h := NewHub(8)
	sub := h.Subscribe("g1")
	defer h.Unsubscribe(sub)

	for v := uint64(1); v <= 5; v++ {
		h.Publish("g1", livedto.Event{GameID: "g1", Type: livedto.EventMove, Version: v})
	}
	for v := uint64(1); v <= 5; v++ {
		select {
		case ev := <-sub.Events():
			if ev.Version != v {
				t.Fatalf("got version %d, want %d", ev.Version, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for version %d", v)
		}
	}
}

func TestPublishIsScopedToGame(t *testing.T) {
	h := NewHub(8)
	a := h.Subscribe("a")
	b := h.Subscribe("b")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("a", livedto.Event{GameID: "a", Version: 1})

	select {
	case ev := <-a.Events():
		if ev.GameID != "a" {
			t.Fatalf("wrong event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber a got nothing")
	}
	select {
	case ev := <-b.Events():
		t.Fatalf("subscriber b leaked event %+v", ev)
	default:
	}
}

func TestSlowSubscriberIsDroppedWithGap(t *testing.T) {
	h := NewHub(1)
	slow := h.Subscribe("g1")
	fast := h.Subscribe("g1")

	h.Publish("g1", livedto.Event{Version: 1})
	if ev := <-fast.Events(); ev.Version != 1 {
		t.Fatalf("fast got %d", ev.Version)
	}
	// slow never drained version 1, so the next publish overflows it
	h.Publish("g1", livedto.Event{Version: 2})

	if ev := <-slow.Events(); ev.Version != 1 {
		t.Fatalf("got version %d, want 1", ev.Version)
	}
	if _, ok := <-slow.Events(); ok {
		t.Fatalf("slow channel still open after overflow")
	}
	if !errors.Is(slow.Err(), ErrBroadcastGap) {
		t.Fatalf("slow.Err() = %v, want ErrBroadcastGap", slow.Err())
	}
	if n := h.SubscriberCount("g1"); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	if ev := <-fast.Events(); ev.Version != 2 {
		t.Fatalf("fast got %d, want 2", ev.Version)
	}
	h.Unsubscribe(fast)
}

func TestUnsubscribeClosesWithoutGap(t *testing.T) {
	h := NewHub(4)
	sub := h.Subscribe("g1")
	h.Unsubscribe(sub)

	if _, ok := <-sub.Events(); ok {
		t.Fatalf("channel open after unsubscribe")
	}
	if err := sub.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if n := h.SubscriberCount("g1"); n != 0 {
		t.Fatalf("subscriber count = %d, want 0", n)
	}

	// publishing after unsubscribe must not panic or deliver
	h.Publish("g1", livedto.Event{Version: 1})
}

func TestManySubscribers(t *testing.T) {
	h := NewHub(4)
	subs := make([]*Subscription, 10)
	for i := range subs {
		subs[i] = h.Subscribe("g1")
	}
	h.Publish("g1", livedto.Event{Version: 7})
	for i, sub := range subs {
		select {
		case ev := <-sub.Events():
			if ev.Version != 7 {
				t.Fatalf("sub %d got version %d", i, ev.Version)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d got nothing", i)
		}
		h.Unsubscribe(sub)
	}
	if n := h.SubscriberCount("g1"); n != 0 {
		t.Fatalf("subscriber count = %d, want 0", n)
	}
}
