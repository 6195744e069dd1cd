package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	New("life screensaver").Info("started", "tick_ms", 300)

	out := buf.String()
	if !strings.Contains(out, `component="life screensaver"`) {
		t.Errorf("missing component tag in %q", out)
	}
	if !strings.Contains(out, "tick_ms=300") {
		t.Errorf("missing attribute in %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})
	defer SetLevel("info")

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	log := New("test")
	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing at warn level")
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel() accepted an unknown level")
	}
}

func TestSetOutputRedirectsExistingLoggers(t *testing.T) {
	log := New("display")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	log.Info("after redirect")
	if !strings.Contains(buf.String(), "after redirect") {
		t.Errorf("logger created before SetOutput wrote %q", buf.String())
	}
}
