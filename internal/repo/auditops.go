package repo

import (
	"fmt"

	"promptvc/internal/audit"
)

// AuditEntries returns the full audit trail as structured data,
// oldest-first.
func (r *Repository) AuditEntries() ([]audit.Entry, error) {
	l, err := r.ensureAudit()
	if err != nil {
		return nil, err
	}
	return l.ReadAll()
}

// AuditExport renders the audit trail in the requested serialized format
// (JSON array or CSV table).
func (r *Repository) AuditExport(format audit.Format) (string, error) {
	entries, err := r.AuditEntries()
	if err != nil {
		return "", err
	}

	switch format {
	case audit.FormatCSV:
		return audit.ExportCSV(entries)
	case audit.FormatJSON, audit.FormatEntries, "":
		return audit.ExportJSON(entries)
	default:
		return "", fmt.Errorf("unknown audit format %q", format)
	}
}
