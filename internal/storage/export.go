package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/jointlock/internal/recorder"
)

type ExportData struct {
	Run       RunMetadata         `json:"run"`
	Steps     int                 `json:"snapshot_count"`
	Snapshots []recorder.Snapshot `json:"snapshots"`
}

// ExportJSON writes a run and its snapshots as one indented document.
func ExportJSON(w io.Writer, meta RunMetadata, snaps []recorder.Snapshot) error {
	data := ExportData{
		Run:       meta,
		Steps:     len(snaps),
		Snapshots: snaps,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
