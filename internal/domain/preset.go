package domain

// Preset is a named, reusable set of pipeline option overrides.
type Preset struct {
	Name    string  `json:"name"`
	Options Options `json:"config"`
}
