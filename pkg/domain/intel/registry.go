package intel

// Registry resolves the adapter that answers a capability.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry. Earlier adapters win when several support
// the same capability.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{}
	for _, a := range adapters {
		if a != nil {
			r.adapters = append(r.adapters, a)
		}
	}
	return r
}

// For returns the adapter for the capability, or nil.
func (r *Registry) For(capability Capability) Adapter {
	if r == nil {
		return nil
	}
	for _, a := range r.adapters {
		if a.Supports(capability) {
			return a
		}
	}
	return nil
}
