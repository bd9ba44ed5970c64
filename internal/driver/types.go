package driver

// Driver describes one controllable device driver: its external
// identity (Label) plus the metadata indiserver needs to launch it.
//
// Driver values are immutable once created. The registry hands out
// copies, never pointers into its own state.
type Driver struct {
	// Name is the driver's internal name as declared in its
	// definition file (the name attribute of the driver element).
	Name string `json:"name"`

	// Label is the unique external identity. Profile driver lists,
	// the running set, and the HTTP surface all key on Label.
	Label string `json:"label"`

	Version string `json:"version"`

	// Binary is the executable indiserver invokes. For remote
	// drivers the binary IS the endpoint spec (host@port).
	Binary string `json:"binary"`

	// Family groups drivers for presentation ("CCDs", "Telescopes",
	// "Remote", ...).
	Family string `json:"family"`

	// SkeletonPath optionally points to a property-definition file,
	// used by some custom drivers. Empty when not applicable.
	SkeletonPath string `json:"skeleton_path,omitempty"`

	// Custom marks drivers supplied by the profile store rather
	// than parsed from the built-in definition directory.
	Custom bool `json:"custom"`
}

// RemoteFamily is the family assigned to remote driver endpoints.
const RemoteFamily = "Remote"

// NewRemote builds a descriptor for a remote driver endpoint.
// The endpoint spec (typically "host@port", port defaulting on the
// device server side) doubles as name, label and binary.
func NewRemote(spec string) Driver {
	return Driver{
		Name:    spec,
		Label:   spec,
		Version: "1.0",
		Binary:  spec,
		Family:  RemoteFamily,
		Custom:  true,
	}
}

// IsRemote reports whether the driver is a remote endpoint spec
// rather than a local executable.
func (d Driver) IsRemote() bool {
	return d.Family == RemoteFamily
}
