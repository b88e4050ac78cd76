package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppendsOneJSONObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	log, err := NewAuditLog(path)
	require.NoError(t, err)

	log.Record(AuditEntry{ManagerID: "net-1", Timestamp: time.Now(), Kind: "MANAGER_CREATED"})
	log.Record(AuditEntry{ManagerID: "net-1", Timestamp: time.Now(), Kind: "WALLET_CREATED", Status: "CREATED"})
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "net-1", entry["managerId"])
	}
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "MANAGER_CREATED", first["msg"])
}
