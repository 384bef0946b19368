// Package input translates raw control actuations into named actions with a
// Started / Performed / Canceled lifecycle.
//
// The pieces, leaves first:
//
//   - Control and Resolver: the boundary to whatever samples devices.
//   - Composite: folds several part controls into one logical value per binding.
//   - Interaction: a per-(binding, interaction) state machine. Process returns a
//     Result instead of calling back into the action, so it can be tested on its own.
//   - Scheduler: absolute deadlines per interaction instance.
//   - Action and Map: own the externally visible phase, apply Results, notify
//     listeners and queue structural changes made from inside listeners.
//
// A Map is owned by one goroutine. Drive it either by polling (Update once per
// frame) or by events (HandleControlChange when a control moves, Update on a
// timer so deadlines still fire). Both paths share the same tick routine and
// produce the same phases for the same sample times.
package input
