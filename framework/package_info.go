// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of REST contract tests.
//
// The general model is:
//
// 1. The test harness talks to the platform under test over HTTP only. It never reaches into
// the platform's storage; everything a test needs is created through the REST surface and
// disposed of the same way (see the harness package).
//
// 2. Requests are built and sent with the restclient package, which asserts on status codes.
// Response bodies are read into a generic JSON tree (jsontree), and collection envelopes are
// mapped into typed lists (paging).
//
// 3. There is a general notion of a test scope which is similar to Go's *testing.T, allowing
// pieces of test logic to be associated with a test identifier and to accumulate success/failure
// results (see the ldtest package).
//
// The domain-specific code that knows what is being tested is responsible for building the
// requests and interpreting the responses on top of these pieces.
package framework
