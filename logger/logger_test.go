package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	assert.NotNil(t, New(nil))
	assert.NotNil(t, New(&Config{Level: "debug", Format: "console"}))
}

func TestJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Infof("stored %d objects", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stored 3 objects", entry["message"])
}

func TestConsistencyRiskMarker(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.ConsistencyRisk("rename rollback failed", errors.New("copy error"), map[string]interface{}{
		"folder_id": "abc",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, true, entry["consistency_risk"])
	assert.Equal(t, "abc", entry["folder_id"])
	assert.Equal(t, "error", entry["level"])
}
