// Package ecs bridges tableau stages to a [Donburi] world.
//
// [NewDonburiStore] forwards interaction events delivered to actors with a
// non-zero EntityID into the world as typed events. [Bind] creates the
// entity for an actor and links the two; [Prune] removes entities whose
// actor has been destroyed.
//
//	world := donburi.NewWorld()
//	stage.SetEntityStore(ecs.NewDonburiStore(world))
//	ecs.Bind(world, button)
//	ecs.InteractionEventType.Subscribe(world, onInteraction)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
