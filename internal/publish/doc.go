// Package publish defines the platform adapter contract plus the error
// taxonomy and retry helpers shared by the concrete adapters.
package publish
