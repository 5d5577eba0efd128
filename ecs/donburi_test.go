package ecs

import (
	"math"
	"testing"
	"time"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/backend/headless"
)

func TestNewDonburiStore(t *testing.T) {
	world := donburi.NewWorld()
	store := NewDonburiStore(world)
	if store == nil {
		t.Fatal("NewDonburiStore returned nil")
	}
}

func TestDonburiStore_EmitEvent(t *testing.T) {
	world := donburi.NewWorld()
	store := NewDonburiStore(world)

	var received []tableau.InteractionEvent
	InteractionEventType.Subscribe(world, func(w donburi.World, e tableau.InteractionEvent) {
		received = append(received, e)
	})

	store.EmitEvent(tableau.InteractionEvent{
		Type:     tableau.EventButtonPress,
		EntityID: 42,
		GlobalX:  100,
		GlobalY:  200,
		Button:   tableau.MouseButtonLeft,
	})
	store.EmitEvent(tableau.InteractionEvent{
		Type:     tableau.EventScroll,
		ScrollDY: -3,
	})

	// Published events stay queued until processed.
	if len(received) != 0 {
		t.Fatalf("events delivered before ProcessEvents: %d", len(received))
	}
	InteractionEventType.ProcessEvents(world)

	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	e0 := received[0]
	if e0.Type != tableau.EventButtonPress || e0.EntityID != 42 {
		t.Errorf("event 0: %+v", e0)
	}
	if e0.GlobalX != 100 || e0.GlobalY != 200 {
		t.Errorf("event 0 position: (%v,%v)", e0.GlobalX, e0.GlobalY)
	}
	if e1 := received[1]; e1.Type != tableau.EventScroll || e1.ScrollDY != -3 {
		t.Errorf("event 1: %+v", e1)
	}
}

func TestDonburiStore_MultipleSubscribers(t *testing.T) {
	world := donburi.NewWorld()
	store := NewDonburiStore(world)

	var count1, count2 int
	InteractionEventType.Subscribe(world, func(w donburi.World, e tableau.InteractionEvent) { count1++ })
	InteractionEventType.Subscribe(world, func(w donburi.World, e tableau.InteractionEvent) { count2++ })

	store.EmitEvent(tableau.InteractionEvent{Type: tableau.EventButtonRelease})
	events.ProcessAllEvents(world)

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both subscribers called once, got %d and %d", count1, count2)
	}
}

func TestBindLinksActorAndEntity(t *testing.T) {
	world := donburi.NewWorld()
	a := tableau.NewActor("hero")

	e := Bind(world, a)
	if a.EntityID == 0 {
		t.Fatal("Bind did not set EntityID")
	}
	if got := ActorOf(world, e); got != a {
		t.Errorf("ActorOf = %v, want %v", got, a)
	}
	found, ok := FindEntity(world, a.EntityID)
	if !ok || found != e {
		t.Errorf("FindEntity = %v, %v; want %v", found, ok, e)
	}
	if _, ok := FindEntity(world, a.EntityID+100); ok {
		t.Error("FindEntity found an unbound id")
	}
}

func TestPruneRemovesDestroyedActors(t *testing.T) {
	world := donburi.NewWorld()
	live := tableau.NewActor("live")
	dead := tableau.NewActor("dead")
	eLive := Bind(world, live)
	eDead := Bind(world, dead)

	dead.Destroy()
	if n := Prune(world); n != 1 {
		t.Fatalf("Prune = %d, want 1", n)
	}
	if world.Valid(eDead) {
		t.Error("entity of destroyed actor still valid")
	}
	if !world.Valid(eLive) || ActorOf(world, eLive) != live {
		t.Error("live entity was removed")
	}
	if ActorOf(world, eDead) != nil {
		t.Error("ActorOf returned an actor for a removed entity")
	}
}

func TestStageForwardsEventsToWorld(t *testing.T) {
	now := time.Unix(1000, 0)
	b := headless.New()
	ctx, err := tableau.NewContext(b, tableau.WithNow(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	stage, err := ctx.NewStage(tableau.StageConfig{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}

	world := donburi.NewWorld()
	stage.SetEntityStore(NewDonburiStore(world))

	button := tableau.NewActor("button")
	button.SetPosition(10, 10)
	button.SetSize(30, 30)
	button.SetReactive(true)
	stage.AddChild(button)
	e := Bind(world, button)

	plain := tableau.NewActor("plain")
	plain.SetPosition(60, 60)
	plain.SetSize(30, 30)
	plain.SetReactive(true)
	stage.AddChild(plain)

	var got []tableau.InteractionEvent
	InteractionEventType.Subscribe(world, func(w donburi.World, ev tableau.InteractionEvent) {
		got = append(got, ev)
	})

	stage.Show()
	frame := func() {
		now = now.Add(b.RefreshInterval())
		ctx.Clock().Iterate()
	}
	frame()
	frame()

	stage.QueueEvent(tableau.Event{Type: tableau.EventButtonPress, X: 20, Y: 25, Button: tableau.MouseButtonLeft})
	stage.QueueEvent(tableau.Event{Type: tableau.EventButtonPress, X: 70, Y: 70, Button: tableau.MouseButtonLeft})
	frame()
	frame()
	InteractionEventType.ProcessEvents(world)

	var presses []tableau.InteractionEvent
	for _, ev := range got {
		if ev.EntityID != uint32(e.Id()) {
			t.Errorf("event for unbound entity: %+v", ev)
		}
		if ev.Type == tableau.EventButtonPress {
			presses = append(presses, ev)
		}
	}
	if len(presses) != 1 {
		t.Fatalf("got %d press events, want 1: %+v", len(presses), got)
	}
	ev := presses[0]
	if math.Abs(ev.LocalX-10) > 1e-6 || math.Abs(ev.LocalY-15) > 1e-6 {
		t.Errorf("local position = (%v,%v), want (10,15)", ev.LocalX, ev.LocalY)
	}
}
