// Package state keeps the per-user pending intent: what the bot expects as the
// next text message from a user. Each user holds at most one intent.
package state
