package controller

import "gopkg.in/yaml.v3"

// iterationReport is the payload behind DumpTrace/DumpUsage (§6's dump
// toggles): a host-inspectable snapshot of one iteration boundary,
// rendered as YAML the way inference-sim persists its tuning runs.
type iterationReport struct {
	Iteration        int    `yaml:"iteration"`
	Device           int    `yaml:"device"`
	CurrentAllocated uint64 `yaml:"current_allocated"`
	PeakAllocated    uint64 `yaml:"peak_allocated"`
	CurrentReserved  uint64 `yaml:"current_reserved"`
	PeakReserved     uint64 `yaml:"peak_reserved"`
	TraceOps         int    `yaml:"trace_ops,omitempty"`
	Reconfigured     bool   `yaml:"reconfigured"`
}

// DumpIterationReport renders the controller's state at the most recent
// iteration boundary as YAML, when either dump toggle is set. It returns
// ("", nil) if neither DumpTrace nor DumpUsage is enabled, so callers can
// unconditionally invoke it at an iteration boundary.
func (c *Controller) DumpIterationReport(reconfigured bool) (string, error) {
	if !c.flags.DumpTrace && !c.flags.DumpUsage {
		return "", nil
	}

	u := c.eng.Usage()
	r := iterationReport{
		Iteration:        c.iteration,
		Device:           c.device,
		CurrentAllocated: u.CurrentAllocated,
		PeakAllocated:    u.PeakAllocated,
		CurrentReserved:  u.CurrentReserved,
		PeakReserved:     u.PeakReserved,
		Reconfigured:     reconfigured,
	}
	if c.flags.DumpTrace && c.collector != nil {
		r.TraceOps = c.collector.Len()
	}

	out, err := yaml.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
