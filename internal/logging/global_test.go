package logging

import (
	"bytes"
	"errors"
	"testing"
)

func TestConfigureOutput(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	var buf bytes.Buffer
	l, err := ConfigureOutput(&buf, "debug", "text")
	if err != nil {
		t.Fatal(err)
	}
	if Global() != l {
		t.Error("ConfigureOutput should install the global logger")
	}
	if !l.addCaller {
		t.Error("caller info should be enabled at debug")
	}

	Infof("configured", map[string]any{"k": "v"})
	if !bytes.Contains(buf.Bytes(), []byte("[info] configured")) {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestConfigureRejectsBadInput(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	if _, err := Configure("loud", "json"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
	if _, err := Configure("info", "yaml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if Global() != prev {
		t.Error("failed Configure must not replace the global logger")
	}
}
