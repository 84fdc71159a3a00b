package sdp

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/ta"
)

// MaxRegions is the number of region slots of the platform.
const MaxRegions = 20

type attachment struct {
	device *Device
	dir    Direction
}

// Region is a protected memory range and the devices allowed on it.
type Region struct {
	attached []attachment
	Addr     uint64
	Size     uint32
	Writer   DeviceID
	inUse    bool
}

// Platform tracks regions and device attachments. It is safe for
// concurrent use.
type Platform struct {
	name    string
	devices []*Device

	mu      sync.Mutex
	regions [MaxRegions]Region
}

// NewPlatform builds a platform from a validated catalog.
func NewPlatform(catalog *entities.DeviceCatalog) (*Platform, error) {
	p := &Platform{name: catalog.Platform}
	if p.name == "" {
		p.name = "SDP platform"
	}
	for _, spec := range catalog.Devices {
		d, err := newDevice(spec)
		if err != nil {
			return nil, err
		}
		p.devices = append(p.devices, d)
	}
	return p, nil
}

// Devices returns the platform's devices in catalog order.
func (p *Platform) Devices() []*Device {
	return p.devices
}

// FindDevice returns the device named name, or nil.
func (p *Platform) FindDevice(name string) *Device {
	for _, d := range p.devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Refcount returns the number of regions the device named name is attached
// to. Unknown devices report 0.
func (p *Platform) Refcount(name string) int {
	d := p.FindDevice(name)
	if d == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return d.refcount
}

// CreateRegion claims a free slot for [addr, addr+size).
func (p *Platform) CreateRegion(addr uint64, size uint32) (uint32, error) {
	if size == 0 {
		return 0, ta.BadParameters("region size must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.regions {
		if !p.regions[i].inUse {
			p.regions[i] = Region{
				Addr:     addr,
				Size:     size,
				inUse:    true,
				attached: make([]attachment, 0, len(p.devices)),
			}
			return uint32(i), nil //nolint:gosec // G115: i < MaxRegions
		}
	}
	return 0, ta.OutOfMemory("all %d region slots in use", MaxRegions)
}

// region returns the live region id. The caller holds p.mu.
func (p *Platform) region(id uint32) (*Region, error) {
	if id >= MaxRegions || !p.regions[id].inUse {
		return nil, ta.BadParameters("no region %d", id)
	}
	return &p.regions[id], nil
}

// DestroyRegion detaches every device from region id and frees its slot.
func (p *Platform) DestroyRegion(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := p.region(id)
	if err != nil {
		return err
	}
	for _, a := range r.attached {
		a.device.refcount--
	}
	*r = Region{}
	return nil
}

// Region returns a copy of region id.
func (p *Platform) Region(id uint32) (Region, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := p.region(id)
	if err != nil {
		return Region{}, false
	}
	out := *r
	out.attached = append([]attachment(nil), r.attached...)
	return out, true
}

// Attached returns the names of the devices attached to r.
func (r Region) Attached() []string {
	names := make([]string, 0, len(r.attached))
	for _, a := range r.attached {
		names = append(names, a.device.Name)
	}
	return names
}

// allowed reports whether d may be attached to r with dir. Any device may
// become the writer of a region without one; the writer may re-attach for
// writing; downstream devices of the same stream may read what a decoder
// or transformer wrote.
func allowed(r *Region, d *Device, dir Direction) bool {
	if dir == DirWrite {
		return r.Writer == 0 || r.Writer == d.ID
	}
	if r.Writer.Stream() != d.ID.Stream() {
		return false
	}
	switch r.Writer.Class() {
	case ClassDecoder:
		return d.ID.Class() == ClassTransformer || d.ID.Class() == ClassSink
	case ClassTransformer:
		return d.ID.Class() == ClassSink
	}
	return false
}

// Attach adds device name to region id with dir after checking
// permissions.
func (p *Platform) Attach(id uint32, name string, dir Direction) error {
	if !dir.Valid() {
		return ta.BadParameters("invalid direction %d", dir)
	}
	d := p.FindDevice(name)
	if d == nil {
		return ta.BadParameters("no device %q", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := p.region(id)
	if err != nil {
		return err
	}
	if !allowed(r, d, dir) {
		return ta.BadParameters("device %s may not access region %d with direction %d (writer 0x%x)", d.Name, id, dir, uint32(r.Writer))
	}
	if dir == DirWrite {
		r.Writer = d.ID
	}
	for i := range r.attached {
		if r.attached[i].device == d {
			r.attached[i].dir = dir
			return nil
		}
	}
	if len(r.attached) >= len(p.devices) {
		return ta.BadParameters("region %d has no free attachment", id)
	}
	r.attached = append(r.attached, attachment{device: d, dir: dir})
	d.refcount++
	return nil
}

// Detach removes device name from region id. A detached writer leaves
// the region without one.
func (p *Platform) Detach(id uint32, name string) error {
	d := p.FindDevice(name)
	if d == nil {
		return ta.BadParameters("no device %q", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := p.region(id)
	if err != nil {
		return err
	}
	for i := range r.attached {
		if r.attached[i].device != d {
			continue
		}
		r.attached = append(r.attached[:i], r.attached[i+1:]...)
		d.refcount--
		if r.Writer == d.ID {
			r.Writer = 0
		}
		return nil
	}
	return ta.BadParameters("device %s not attached to region %d", d.Name, id)
}

// Reset frees every region and clears every refcount.
func (p *Platform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regions = [MaxRegions]Region{}
	for _, d := range p.devices {
		d.refcount = 0
	}
}

// DumpStatus writes the platform status to w in one Write, so a writer
// that rejects short capacity receives nothing partial.
func (p *Platform) DumpStatus(w io.Writer) error {
	var b bytes.Buffer
	p.mu.Lock()
	fmt.Fprintf(&b, "%s\n", p.name)
	for _, d := range p.devices {
		fmt.Fprintf(&b, "device name %s id 0x%x\n", d.Name, uint32(d.ID))
	}
	for _, d := range p.devices {
		fmt.Fprintf(&b, "%s (%s) refcount %d\n", d.Name, d.ID.ClassName(), d.refcount)
	}
	for i := range p.regions {
		r := &p.regions[i]
		if !r.inUse {
			continue
		}
		fmt.Fprintf(&b, "region %d addr 0x%x size %d writer 0x%x\n", i, r.Addr, r.Size, uint32(r.Writer))
		for _, a := range r.attached {
			fmt.Fprintf(&b, "attached 0x%x direction %d\n", uint32(a.device.ID), a.dir)
		}
	}
	p.mu.Unlock()

	_, err := w.Write(b.Bytes())
	return err
}
