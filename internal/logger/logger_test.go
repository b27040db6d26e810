package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("prod", &buf)

	log.Debug("hidden")
	log.Info("synced", "address", "addrA")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "synced", line["msg"])
	assert.Equal(t, "addrA", line["address"])
}

func TestNewWithWriter_DevLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("dev", &buf)

	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
