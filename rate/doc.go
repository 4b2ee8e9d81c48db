// Package rate implements the window-based request governor that fronts
// every authgate-protected surface. Counters live in Redis under
// rate-limit:{prefix}:{clientKey}; the decision is a single INCR followed
// by a TTL refresh.
package rate
