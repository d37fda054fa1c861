package services

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/wagateway/core/internal/core/domain"
)

// canonicalEvent encodes the hashable fields of an AuditEvent as a
// sorted-keys JSON object so the hash never depends on Go struct field
// order or json package internals changing between versions.
func canonicalEvent(e domain.AuditEvent) []byte {
	fields := map[string]any{
		"event_id":       e.EventID,
		"user_key":       e.UserKey,
		"tenant_id":      e.TenantID,
		"timestamp":      e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		"actor":          string(e.Actor),
		"action":         e.Action,
		"reason":         e.Reason,
		"correlation_id": e.CorrelationID,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(fields[k])
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// marshalExport serializes a user's event list for ExportStore.PutExport.
func marshalExport(events []domain.AuditEvent) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}
