// Package ports defines the interfaces the protocol core depends on.
// Infrastructure adapters (wazero memory, YAML parsing, sealing) implement
// them so the host and task packages stay independent of those libraries.
package ports
