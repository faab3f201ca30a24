package network

import "fmt"

// TopologyError reports an illegal Connect: an over-quota fan-in or fan-out,
// re-pointing an already connected edge, or mixing models.
type TopologyError struct {
	Edge   string
	Src    string
	Dst    string
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology: edge %s (%s -> %s): %s", e.Edge, e.Src, e.Dst, e.Reason)
}

// ConfigurationError reports a model that cannot run: missing edges or
// parameters, non-positive capacities or delays, unreachable nodes.
type ConfigurationError struct {
	Subject string // node or edge ID, empty for model-wide problems
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Subject, e.Reason)
}

func configErr(subject, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}
