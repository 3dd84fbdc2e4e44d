// Package connectors provides access to the places books come from.
// The filesystem connector discovers book files in a library directory
// and watches it for changes.
package connectors
