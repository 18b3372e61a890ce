// Package store keeps block lifecycle records and sampled checkpoints for
// the dashboard.
//
// The main components are:
//
//   - [Store]: interface defining storage and subscription operations
//   - [MemoryStore]: in-memory implementation with pub/sub and a bounded event ring
//   - [BlockRecord]: storage representation of a block's status
//   - [EventRecord]: storage representation of a sampled checkpoint
//
// Subscribers receive block updates via channels with non-blocking sends, so
// a slow dashboard never stalls a render.
package store
