package model

import (
	"encoding/json"
	"time"
)

// UploadedFile is a spreadsheet accepted for analysis.
type UploadedFile struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	Path             string    `json:"file_path"`
	UploadedBy       string    `json:"uploaded_by,omitempty"`
	AnalysisComplete bool      `json:"analysis_complete"`
	UploadedAt       time.Time `json:"upload_date"`
}

// AnalysisResult is one persisted analysis of an uploaded file. Data is an
// opaque JSON document; (FileID, Type) is unique.
type AnalysisResult struct {
	ID        string          `json:"id"`
	FileID    string          `json:"excel_file_id"`
	Type      string          `json:"result_type"`
	Data      json.RawMessage `json:"result_data"`
	CreatedAt time.Time       `json:"created_at"`
}
