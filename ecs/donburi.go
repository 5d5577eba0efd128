package ecs

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"

	"github.com/phanxgames/tableau"
)

// InteractionEventType is the Donburi event type for tableau interaction
// events. Events are queued until ProcessEvents runs on the world.
var InteractionEventType = events.NewEventType[tableau.InteractionEvent]()

// ActorData links an entity to the actor that represents it on a stage.
type ActorData struct {
	Actor *tableau.Actor
}

// ActorComponent holds the actor of a bound entity.
var ActorComponent = donburi.NewComponentType[ActorData]()

var boundActors = donburi.NewQuery(filter.Contains(ActorComponent))

type donburiStore struct {
	world donburi.World
}

// NewDonburiStore creates an EntityStore backed by a Donburi world.
func NewDonburiStore(world donburi.World) tableau.EntityStore {
	return &donburiStore{world: world}
}

func (s *donburiStore) EmitEvent(event tableau.InteractionEvent) {
	InteractionEventType.Publish(s.world, event)
}

// Bind creates an entity for a and stores its id in a.EntityID, so events
// delivered to a reach the world.
func Bind(world donburi.World, a *tableau.Actor) donburi.Entity {
	e := world.Create(ActorComponent)
	ActorComponent.SetValue(world.Entry(e), ActorData{Actor: a})
	a.EntityID = uint32(e.Id())
	return e
}

// ActorOf returns the actor bound to e, or nil.
func ActorOf(world donburi.World, e donburi.Entity) *tableau.Actor {
	if !world.Valid(e) {
		return nil
	}
	entry := world.Entry(e)
	if !entry.HasComponent(ActorComponent) {
		return nil
	}
	return ActorComponent.Get(entry).Actor
}

// FindEntity returns the live entity bound to the actor carrying id.
func FindEntity(world donburi.World, id uint32) (donburi.Entity, bool) {
	var found donburi.Entity
	ok := false
	boundActors.Each(world, func(entry *donburi.Entry) {
		if ok {
			return
		}
		if uint32(entry.Entity().Id()) == id {
			found, ok = entry.Entity(), true
		}
	})
	return found, ok
}

// Prune removes entities whose actor was destroyed and reports how many
// were removed.
func Prune(world donburi.World) int {
	var dead []donburi.Entity
	boundActors.Each(world, func(entry *donburi.Entry) {
		if a := ActorComponent.Get(entry).Actor; a == nil || a.IsDestroyed() {
			dead = append(dead, entry.Entity())
		}
	})
	for _, e := range dead {
		world.Remove(e)
	}
	return len(dead)
}
