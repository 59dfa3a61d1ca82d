// Package cmstests contains the contract tests for the platform's REST APIs. Each area of the
// platform has a Do*Tests function that builds a tree of tests, and fixture helpers that create
// users, sites, content and processes which are removed again when the test ends.
package cmstests
