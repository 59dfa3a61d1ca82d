// Package ldtest provides a test runner that behaves much like Go's testing package, but runs
// outside of "go test": tests form a named tree, can be selected with regex filters, capture
// their own debug output, and report through a pluggable TestLogger.
//
// A *T can be passed to the testify assert and require packages in place of a *testing.T.
package ldtest
