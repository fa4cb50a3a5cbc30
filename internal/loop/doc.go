// Package loop implements the single logical event thread that owns client state.
//
// # Components
//
//   - [Loop]: FIFO executor backed by one goroutine and an unbounded queue.
//
// # Architecture boundaries
//
// Every state mutation and observer notification of the client happens inside a
// function run by the loop. Provider and storage I/O runs elsewhere and re-enters
// the loop through [Loop.Post].
//
// # What this package must NOT do
//
//   - Block the poster: Post only appends to the queue.
//   - Import authsession or any sibling internal package.
package loop
