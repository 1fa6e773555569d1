// Package mailbox wraps one IMAP account. The mail source adapters, the
// label store and the verification-code retriever all talk to the same
// connection, serialized by a mutex: go-imap clients are not safe for
// concurrent commands.
package mailbox

import (
	"context"
	"time"
)

// Envelope is the metadata slice of one message, enough to build a
// candidate without fetching the body.
type Envelope struct {
	UID          uint32
	Subject      string
	From         string
	InternalDate time.Time
}

// Query expresses one server-side candidate search. WithoutKeywords maps to
// IMAP UNKEYWORD, so labeled messages never leave the server.
type Query struct {
	Subject         string
	Since           time.Time
	WithoutKeywords []string
	Unseen          bool
	Max             int
}

type Client interface {
	// SearchEnvelopes returns up to q.Max envelopes, most recent first.
	SearchEnvelopes(ctx context.Context, q Query) ([]Envelope, error)
	// FetchBody returns the raw body of one message.
	FetchBody(ctx context.Context, uid uint32) (string, error)
	// AddKeyword and RemoveKeyword are at-least-once-safe: IMAP STORE
	// +FLAGS/-FLAGS on an already-present or already-absent keyword is a
	// no-op on the server.
	AddKeyword(ctx context.Context, uid uint32, keyword string) error
	RemoveKeyword(ctx context.Context, uid uint32, keyword string) error
	MarkSeen(ctx context.Context, uid uint32) error
	Ping(ctx context.Context) error
	Close() error
}
