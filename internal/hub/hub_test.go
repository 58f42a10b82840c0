package hub

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/DoyleJ11/voxel-client/internal/world"
)

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, Options{})
	defer h.Shutdown("test over")
	reply := make(chan *world.World, 1)

	h.Inbox() <- CreateWorld{Code: "ZED123", Reply: reply}
	w1 := <-reply

	h.Inbox() <- GetWorld{Code: "ZED123", Reply: reply}
	w2 := <-reply

	if w1 == nil || w2 == nil || w1 != w2 {
		t.Fatalf("expected same world pointer")
	}
	if w1.Code() != "ZED123" {
		t.Fatalf("unexpected code %q", w1.Code())
	}
}

func TestHub_GetUnknownIsNil(t *testing.T) {
	h := NewHub(context.Background(), Options{})
	defer h.Shutdown("test over")

	if w := h.Get("NOPE"); w != nil {
		t.Fatalf("expected nil world")
	}
}

func TestHub_EnsureIsIdempotentAndListed(t *testing.T) {
	h := NewHub(context.Background(), Options{TickHz: 10})
	defer h.Shutdown("test over")

	a := h.Ensure("main")
	b := h.Ensure("main")
	if a == nil || a != b {
		t.Fatalf("ensure created two worlds")
	}
	if a.TickHz() != 10 {
		t.Fatalf("tick rate not passed down: %d", a.TickHz())
	}

	reply := make(chan []string, 1)
	h.Inbox() <- ListWorlds{Reply: reply}
	if codes := <-reply; !slices.Equal(codes, []string{"main"}) {
		t.Fatalf("unexpected worlds %v", codes)
	}
}

func TestHub_RemoveStopsWorld(t *testing.T) {
	h := NewHub(context.Background(), Options{})
	defer h.Shutdown("test over")

	w := h.Ensure("gone")
	h.Inbox() <- RemoveWorld{Code: "gone"}

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatalf("world still running after remove")
	}
	if h.Get("gone") != nil {
		t.Fatalf("removed world still listed")
	}
}

func TestHub_ShutdownStopsEverything(t *testing.T) {
	h := NewHub(context.Background(), Options{})
	a := h.Ensure("a")
	b := h.Ensure("b")

	h.Shutdown("bye")

	for _, w := range []*world.World{a, b} {
		select {
		case <-w.Done():
		default:
			t.Fatalf("world %s still running after shutdown", w.Code())
		}
	}
	if h.Ensure("c") != nil {
		t.Fatalf("stopped hub created a world")
	}
	h.Shutdown("again") // must not block
}
