package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// BackupParity implements S6: validates that a recent backup artifact
// exists and matches the expected schema. S6 is a severity-critical check
// (§4.7): its error/fail results map to critical alerts.
type BackupParity struct {
	RequiredFields []string
}

// NewBackupParity builds S6 with the default required-field set.
func NewBackupParity() *BackupParity {
	return &BackupParity{RequiredFields: []string{"backup_id", "created_at", "size_bytes", "schema_version"}}
}

type backupStatusPayload struct {
	BackupID      string `json:"backup_id"`
	CreatedAt     string `json:"created_at"`
	SizeBytes     int64  `json:"size_bytes"`
	SchemaVersion string `json:"schema_version"`
}

func (b *BackupParity) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S6-backup-restore-parity", TraceID: rc.TraceID}

	path := rc.Endpoint("backup_status", "/admin/backup/status")
	headers := rc.Credentials.RoleHeaders(rc.Credentials.AdminToken)
	if headers == nil {
		headers = rc.Credentials.AuthHeaders()
	}
	resp := rc.HTTP.TimedGet(ctx, rc.TargetBaseURL+path, rc.Timeout, headers)
	if resp.TransportError != nil {
		return errorResult(res, start, "backup status probe failed", map[string]any{"error": resp.TransportError.Error()})
	}
	if resp.StatusCode != http.StatusOK {
		return failResult(res, start, fmt.Sprintf("backup status returned %d", resp.StatusCode), map[string]any{"status_code": resp.StatusCode})
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return failResult(res, start, "backup status payload is not valid JSON", nil)
	}
	missing := []string{}
	for _, f := range b.RequiredFields {
		if _, ok := raw[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return failResult(res, start, fmt.Sprintf("backup payload missing fields: %v", missing), map[string]any{"payload_keys": keysOf(raw)})
	}

	var parsed backupStatusPayload
	_ = json.Unmarshal(resp.Body, &parsed)
	if parsed.BackupID == "" || parsed.SchemaVersion == "" {
		return failResult(res, start, "backup artifact missing id or schema version", map[string]any{"payload": parsed})
	}
	return passResult(res, start, fmt.Sprintf("backup %s matches expected schema", parsed.BackupID), map[string]any{"payload": parsed})
}
