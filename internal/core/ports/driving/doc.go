// Package driving provides interfaces implemented by core services
// (primary/inbound ports).
package driving
