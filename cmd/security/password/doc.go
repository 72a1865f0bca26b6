// Package password provides Argon2id password hashing for Lyceum.
//
// Hashes use the PHC string format and are treated as untrusted input
// during verification: decoding is strict, and hashes whose parameters
// exceed the configured bounds are refused (anti-DoS). Hashing cost and
// the password policy are tunable via environment variables.
package password
