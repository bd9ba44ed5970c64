package profile

// Profile is a named, persisted set of driver labels plus launch
// options for the device server.
type Profile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Port is the client port indiserver binds when this profile
	// starts.
	Port int `json:"port"`

	// AutoStart marks the profile to be started when the service
	// boots. Only the first autostart profile is honored.
	AutoStart bool `json:"autostart"`

	// AutoConnect requests the post-start CONNECT sweep.
	AutoConnect bool `json:"autoconnect"`
}

// CustomDriver is a user-supplied driver definition persisted with
// the profiles and layered over the built-in driver catalog.
type CustomDriver struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	Family  string `json:"family"`
	Binary  string `json:"binary"`
	Version string `json:"version"`
}
