package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupWriter_Levels(t *testing.T) {
	t.Cleanup(func() { Setup(false) })

	var buf bytes.Buffer
	SetupWriter(&buf, false)
	Debug("hidden", "key", "value")
	Info("shown", "device", "/dev/sda1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "device=/dev/sda1")

	buf.Reset()
	SetupWriter(&buf, true)
	Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}
