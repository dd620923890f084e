// Package mocks holds generated and hand-written test doubles.
//
// Generated mocks use go.uber.org/mock (gomock). To regenerate after an
// interface change, run:
//
//	go generate ./internal/mocks
//
// Hand-written doubles (StubDriver, MemorySessionStore) live in the auth
// subpackage; prefer those for ordinary tests and reach for gomock when a
// test needs precise call expectations or error injection per call.
package mocks

// MockSessionStore covers ports.SessionStore (Get, Save, Delete).
//go:generate go run go.uber.org/mock/mockgen -package=ports -destination=ports/session_store.go github.com/crestline/webstack/internal/ports SessionStore
