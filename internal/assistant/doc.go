// Package assistant implements the HTTP client for the hosted assistants
// backend: thread creation, user-message append, run trigger, run polling,
// and newest-first message listing. The orchestrator consumes it through a
// narrow interface so tests can substitute a scripted backend.
package assistant
