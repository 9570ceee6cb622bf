// Package storage owns the alias registry. UnitStorage is pure storage with no
// validation; CollisionHandler inspects a live view of the same map to decide
// whether an alias may be (re)bound; Manager composes both and is the only
// entry point callers should use to create, replace, remove or refresh units.
//
// Collision policy is evaluated in a fixed precedence order: an unbound alias
// always proceeds, DontCreateUnitOnCollision skips silently, a disallowed
// collision fails with CollisionError, and AllowCollisions overwrites.
package storage
