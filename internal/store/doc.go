// Package store provides persistence for charla sessions.
//
// The primary implementation is SQLiteStore, backed by modernc.org/sqlite
// with WAL mode enabled. A MockStore is provided for tests.
//
// Sessions are the durable mapping from a WhatsApp user id (wa_id) to the
// assistant conversation thread that user talks to. The mapping is created
// lazily on first contact and is never replaced; creation races surface as
// ErrDuplicateSession so callers can re-read the winning row. Conversation
// content itself lives in the assistant backend and is deliberately not
// persisted here.
package store
