// Package auth provides the security core of a cookie based sign in flow:
// password hashing, short lived second factor codes, stamp bound tokens and
// session revalidation.
//
// Password hashing:
//   - PasswordHasher writes versioned PBKDF2 blobs that record the PRF,
//     iteration count and salt, so parameters can be raised without breaking
//     stored hashes. Verification reports when a hash should be upgraded, and
//     legacy bcrypt hashes are accepted for migration.
//
// Security stamps:
//   - Every account carries a SecurityStamp that rotates whenever its
//     credentials, roles or claims change. Codes from TotpGenerator, tokens
//     from SignedTokenCodec and session principals all embed the stamp, so a
//     rotation voids them without any server side bookkeeping.
//
// Sessions:
//   - SecurityStampGuard builds ClaimsPrincipal values from accounts and
//     revalidates them on each request. A rejected session is signed out of
//     both the primary and the secondary scheme. Lookup failures, timeouts and
//     cancellation all reject.
//   - CookieAuthenticator carries principals in signed cookie tickets and runs
//     the guard from a fiber middleware.
//
// Activity sinks:
//   - ActivitySink is a best effort audit emitter used by the sign in manager
//     and the guard. Sink errors are logged and never block authentication.
package auth
