package sdp

import (
	"fmt"

	"github.com/splitworld/tee-sdk/domain/entities"
)

// DeviceID encodes a device's class in bits 24-31 and its stream type in
// bits 16-23.
type DeviceID uint32

const (
	classMask  = 0xFF000000
	streamMask = 0x00FF0000
)

// Device classes.
const (
	ClassDecrypter   DeviceID = 1 << 24
	ClassParser      DeviceID = 2 << 24
	ClassDecoder     DeviceID = 3 << 24
	ClassTransformer DeviceID = 4 << 24
	ClassSink        DeviceID = 5 << 24
)

// Stream types.
const (
	StreamVideo DeviceID = 1 << 16
	StreamAudio DeviceID = 2 << 16
)

var classByName = map[string]DeviceID{
	"decrypter":   ClassDecrypter,
	"parser":      ClassParser,
	"decoder":     ClassDecoder,
	"transformer": ClassTransformer,
	"sink":        ClassSink,
}

var streamByName = map[string]DeviceID{
	"video": StreamVideo,
	"audio": StreamAudio,
}

func (id DeviceID) Class() DeviceID  { return id & classMask }
func (id DeviceID) Stream() DeviceID { return id & streamMask }

// ClassName returns the catalog name of the class.
func (id DeviceID) ClassName() string {
	for name, c := range classByName {
		if c == id.Class() {
			return name
		}
	}
	return "unknown"
}

// Direction is the access a device requests on a region.
type Direction uint32

const (
	DirRW    Direction = 0
	DirRead  Direction = 1
	DirWrite Direction = 2
)

func (d Direction) Valid() bool {
	return d <= DirWrite
}

// Device is a secure data path device. Its refcount, the number of regions
// it is attached to, is guarded by the owning Platform's lock.
type Device struct {
	Name     string
	ID       DeviceID
	refcount int
}

func newDevice(spec entities.DeviceSpec) (*Device, error) {
	class, ok := classByName[spec.Class]
	if !ok {
		return nil, fmt.Errorf("device %q: unknown class %q", spec.Name, spec.Class)
	}
	stream, ok := streamByName[spec.Stream]
	if !ok {
		return nil, fmt.Errorf("device %q: unknown stream %q", spec.Name, spec.Stream)
	}
	return &Device{Name: spec.Name, ID: class | stream}, nil
}
