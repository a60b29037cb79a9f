// Package model defines the worker backend abstraction: a minimal Model
// interface for single-shot text completion, a MockModel for tests and
// examples, and an adapter exposing any Model as a core.Tool so LLM-backed
// agents flow through the execution interceptor like any other unit of work.
//
// Which concrete model backs a given agent is decided by the surrounding
// application; this package only supplies the opaque implementations.
package model
