// Package contacts implements a contacts-management backend: account
// registration and verification, JWT session lifecycle, and a per-user
// address book persisted via Bun.
//
// Session lifecycle:
//   - TokenService mints purpose-tagged HS256 tokens (access, refresh, email
//     verification, password reset). Single-use purposes carry a jti so the
//     RevocationRegistry can consume them exactly once.
//   - Refresh rotation runs through Auther.Refresh: the presented token is
//     validated, checked against the registry, and consumed atomically after
//     the replacement pair is issued. A replayed refresh token loses the race
//     and is rejected, which surfaces token theft.
//   - Password resets write a subject-wide cutoff so every session issued
//     before the reset dies at once, access tokens included.
//
// Account lifecycle:
//   - Users carry a UserStatus field persisted via Bun. Statuses cover
//     pending, active, suspended, disabled, and archived flows.
//   - UserStateMachine centralizes the transition graph, timestamp handling,
//     and persistence. Invoke Transition with ActorRef metadata whenever an
//     operator moves an account.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     state machine to describe lifecycle, login, token rotation, and password
//     reset events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package contacts
