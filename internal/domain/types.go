package domain

// DownloadEvent represents one recorded file download
// This is the wire format stored on the pending queue and the history ledger
type DownloadEvent struct {
	ID        string `json:"id"`                // opaque unique token, assigned at ingestion
	IPAddress string `json:"ip_address"`        // required
	UserID    string `json:"user_id,omitempty"` // empty for anonymous downloads
	ProjectID string `json:"project_id"`        // required
	VersionID string `json:"version_id"`        // required
}

// Valid reports whether the event carries the fields required for accounting.
// The ID is assigned by the ingestion gate, so it is not checked here.
func (e *DownloadEvent) Valid() bool {
	return e.IPAddress != "" && e.ProjectID != "" && e.VersionID != ""
}

// Anonymous reports whether the event was produced by a session without a user
func (e *DownloadEvent) Anonymous() bool {
	return e.UserID == ""
}
