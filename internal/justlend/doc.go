// Package justlend reads market and account data from the JustLend money
// market contracts. All fetches go through a shared retrier with jittered
// backoff and a fixed-delay pacer between per-market contract calls.
package justlend
