// Package catalog loads the hierarchical device catalog and the credentials
// store used to reach testbed switches.
//
// The catalog file maps vendor -> model -> version -> device descriptors.
// Two on-disk shapes are accepted: the current nested-mapping form and the
// older "vendors:" list form. Both flatten to the same ordered entry list.
package catalog

// Device describes one testbed switch as written in the catalog file.
type Device struct {
	Serial         string
	MgmtIP         string
	Port           int
	Hostname       string
	DefaultGateway string
	Netmask        string
}

// Entry is one flattened catalog row: a device plus its classification triple.
type Entry struct {
	Vendor  string
	Model   string
	Version string
	Device  Device
}

// DefaultPort is assumed when a device descriptor omits its SSH port.
const DefaultPort = 22
