package types

// Device is a piece of network equipment. Vendor and serial number live on
// the hub row; the general info and ssh config blocks are two independent
// satellites with their own version history.
type Device struct {
	DeviceKey    string
	Vendor       *string
	SerialNumber *string

	// sat_device_info
	Hostname    *string
	Description *string
	Status      *string

	// sat_device_ssh
	Cypher           *string
	HostKeyAlgorithm *string
	MAC              *string
	DeviceType       *string
}

// HasInfoData reports whether a general-info satellite row has to be
// written at create time.
func (d Device) HasInfoData() bool {
	return d.Hostname != nil || d.Description != nil || d.Status != nil
}

// HasSSHData reports whether an ssh-config satellite row has to be written
// at create time.
func (d Device) HasSSHData() bool {
	return d.Cypher != nil || d.HostKeyAlgorithm != nil || d.MAC != nil || d.DeviceType != nil
}
