// Package internaldefs holds the shared metric name table consumed by the
// prometheus and otel exporters. It exists so both exporters render the
// exact same names without duplicating the list.
package internaldefs
