// Package entities provides the core types of the trust-boundary protocol.
// They are shared by the host (client) side and the task (trusted) side and
// carry no behavior beyond classification and formatting.
package entities
