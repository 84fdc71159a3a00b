package ports

import "github.com/splitworld/tee-sdk/domain/entities"

// DeviceCatalogParser parses a secure data path device catalog.
type DeviceCatalogParser interface {
	Parse(data []byte) (*entities.DeviceCatalog, error)
}
