// Package validate holds the input rules flow controllers run before any
// remote call. Rules are evaluated in order and the first failure wins;
// each failure names the offending field so callers can highlight it.
//
// # What this package must NOT do
//
//   - Perform I/O or touch the network.
//   - Import authflow or any sibling internal package.
package validate
