// Package cache memoizes expensive read-query results in memory.
//
// [LRU] is a generic bounded cache with least-recently-used eviction.
// [Slots] wraps one LRU per logical aggregate name so services can cache
// "the list of all X" and invalidate it when any X is created, updated or
// deleted.
//
// Both types are constructed explicitly and passed to the services that use
// them; there is no package-level cache state.
package cache
