package entities

import "fmt"

// CommandID identifies an operation exported by a trusted application.
// Identifiers are only meaningful within one application.
type CommandID uint32

func (c CommandID) String() string {
	return fmt.Sprintf("cmd(%d)", uint32(c))
}
