// Package unit defines the data holders stored in the alias registry. A Unit is a
// plain named record whose data may be replaced at any time; fetchable variants
// (Arbiter) add a Dispatch capability that refreshes the data from one remote
// endpoint through an injected transport. The registry never needs to know which
// variant it holds: callers test for the Fetchable capability when they want to
// refresh.
package unit
