// Package orchestrator owns the conversation lifecycle: resolving or creating
// the per-user session, appending the user's text to the assistant thread,
// triggering a run, and waiting for its completion.
//
// Calls are serialized per user identity, so two messages from the same user
// cannot race to create a session or interleave runs on one thread. The run
// wait is bounded: a backend-reported terminal failure surfaces as *RunError
// and deadline exhaustion as ErrRunTimeout, rather than polling forever.
package orchestrator
