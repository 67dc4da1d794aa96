// Package security gates which model-proposed commands may reach the shell.
//
// The Authorizer sits between reply parsing and the command executor.
// A command line is approved only when:
//
//   - it splits into a base command plus exactly one trailing value
//   - the base, re-joined with single spaces, equals an allowlist entry
//
// Allowlists are derived fresh from the current preference snapshot for
// every check. Startup applications use a separate allowlist of bare
// executable names and must carry the detached marker (" &").
//
// Matching is exact-string only: never prefix, substring or pattern.
package security
