package entities

// DeviceSpec describes one secure data path device.
type DeviceSpec struct {
	Name   string `yaml:"name" json:"name" validate:"required,max=63"`
	Class  string `yaml:"class" json:"class" validate:"required,oneof=decrypter parser decoder transformer sink"`
	Stream string `yaml:"stream" json:"stream" validate:"required,oneof=video audio"`
}

// DeviceCatalog is the set of devices a secure data path platform knows.
type DeviceCatalog struct {
	Platform string       `yaml:"platform" json:"platform"`
	Devices  []DeviceSpec `yaml:"devices" json:"devices" validate:"required,min=1,max=8,dive"`
}
