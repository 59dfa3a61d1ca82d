// Package servicedef describes the parts of the platform's REST contract that both the tests
// and the mock platform depend on: capability names, request bodies, and well-known constants.
package servicedef
