// Package prometheus renders authgate counters in Prometheus text
// exposition format without depending on the Prometheus client library.
// The counter set is small and fixed, so a hand-rendered scrape keeps
// the dependency surface flat.
package prometheus
