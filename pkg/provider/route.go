package provider

// Route maps a service-specific HTTP path to the action it invokes.
type Route struct {
	Path   string
	Action string
}
