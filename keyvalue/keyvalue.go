// Package keyvalue holds the key/value pair type used to attach context to diagnostic messages.
package keyvalue

// T is a single piece of context for a diagnostic message.
type T struct {
	Key   string
	Value string
}
