package config

import "testing"

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	old := Default()
	new := Default()
	if d := Diff(old, new); d.Any() {
		t.Errorf("diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_AgentTuning(t *testing.T) {
	t.Parallel()

	old := Default()
	new := Default()
	new.Agent.Persona = "Þú ert Sunna og svarar í lengra máli."
	new.Agent.Greeting = "Góðan daginn!"
	new.Agent.FillerPhrases = map[string]string{"thinking": "Andartak..."}
	new.Agent.Abbreviations = []string{"t.d.", "kr."}

	d := Diff(old, new)
	if !d.PersonaChanged {
		t.Error("persona change not detected")
	}
	if !d.GreetingChanged {
		t.Error("greeting change not detected")
	}
	if !d.FillersChanged {
		t.Error("filler change not detected")
	}
	if !d.AbbreviationsChanged {
		t.Error("abbreviation change not detected")
	}
	if d.TimingChanged || d.LogLevelChanged {
		t.Errorf("unexpected changes flagged: %+v", d)
	}
}

func TestDiff_TimingAndLogLevel(t *testing.T) {
	t.Parallel()

	old := Default()
	new := Default()
	new.Telephony.SilenceThresholdMs = 600
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.TimingChanged {
		t.Error("timing change not detected")
	}
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level change = %+v", d)
	}
}
