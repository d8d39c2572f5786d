package embedding

import "context"

// Disabled fails every call with ErrDisabled.
type Disabled struct {
	reason string
	dims   int
}

// NewDisabled returns a provider that never embeds.
func NewDisabled(reason string, dims int) *Disabled {
	return &Disabled{reason: reason, dims: dims}
}

func (d *Disabled) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, &Error{Provider: d.Name(), Message: d.reason, Cause: ErrDisabled}
}

func (d *Disabled) Dimensions() int { return d.dims }

func (d *Disabled) Name() string { return "disabled" }

// State matches Breaker.State for health output.
func (d *Disabled) State() string { return "disabled" }

func (d *Disabled) Close() error { return nil }
