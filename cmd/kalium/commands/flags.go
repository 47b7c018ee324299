package commands

import "time"

// durationFlag remembers whether the user set it, so the configured value
// applies otherwise.
type durationFlag struct {
	value time.Duration
	set   bool
}

func (d *durationFlag) String() string {
	if !d.set {
		return ""
	}
	return d.value.String()
}

func (d *durationFlag) Set(raw string) error {
	v, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.value = v
	d.set = true
	return nil
}

func (d *durationFlag) Type() string { return "duration" }
