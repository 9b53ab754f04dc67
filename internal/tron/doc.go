// Package tron wraps the EVM compatible JSON-RPC surface that TronGrid
// exposes for the TVM. It provides contract reads via eth_call and the
// base58check codec used for T-prefixed TRON addresses.
package tron
