package config

import (
	"maps"
	"slices"
)

// TuningDiff describes what changed between two configs. Only fields that can
// be safely hot-reloaded are tracked; provider and network changes require a
// restart and are ignored here.
type TuningDiff struct {
	PersonaChanged       bool
	GreetingChanged      bool
	FillersChanged       bool
	AbbreviationsChanged bool
	TimingChanged        bool

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Any reports whether the diff carries at least one change.
func (d TuningDiff) Any() bool {
	return d.PersonaChanged || d.GreetingChanged || d.FillersChanged ||
		d.AbbreviationsChanged || d.TimingChanged || d.LogLevelChanged
}

// Diff compares old and new configs and returns what changed. Agent tuning
// applies to calls started after the reload; in-flight calls keep the
// settings they were created with.
func Diff(old, new *Config) TuningDiff {
	d := TuningDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Agent.Persona != new.Agent.Persona {
		d.PersonaChanged = true
	}
	if old.Agent.Greeting != new.Agent.Greeting {
		d.GreetingChanged = true
	}
	if !maps.Equal(old.Agent.FillerPhrases, new.Agent.FillerPhrases) {
		d.FillersChanged = true
	}
	if !slices.Equal(old.Agent.Abbreviations, new.Agent.Abbreviations) {
		d.AbbreviationsChanged = true
	}
	if old.Telephony.SilenceThresholdMs != new.Telephony.SilenceThresholdMs ||
		old.Telephony.EnergyThreshold != new.Telephony.EnergyThreshold ||
		old.Telephony.BargeInFrames != new.Telephony.BargeInFrames {
		d.TimingChanged = true
	}

	return d
}
