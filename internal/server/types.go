// Package server provides the HTTP API for audio card jobs.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// NormalizeRequest is the HTTP request body for a loudness normalization job.
type NormalizeRequest struct {
	// AudioBase64 is the base64-encoded source recording.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
	// TargetLUFS is the integrated loudness target. Defaults to the server setting.
	TargetLUFS *float64 `json:"target_lufs" validate:"omitempty,gte=-70,lte=-5"`
	// PeakDBTP is the true peak ceiling. Defaults to the server setting.
	PeakDBTP *float64 `json:"peak_dbtp" validate:"omitempty,gte=-9,lte=0"`
	// PushToS3 indicates whether to publish the artifact to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CutRequest is the HTTP request body for a cut job. Either AudioBase64 or
// SourceJobID names the recording.
type CutRequest struct {
	AudioBase64      string `json:"audio_base64" validate:"required_without=SourceJobID,omitempty,base64"`
	SourceJobID      string `json:"source_job_id" validate:"required_without=AudioBase64,omitempty,startswith=job-"`
	TranscriptBase64 string `json:"transcript_base64" validate:"omitempty,base64"`
	Suffix           string `json:"suffix" validate:"omitempty,max=128,excludesall=/\\"`
	PushToS3         bool   `json:"push_to_s3"`
}

// FileDTO is one named file of a join request.
type FileDTO struct {
	Name       string `json:"name" validate:"required,max=255"`
	DataBase64 string `json:"data_base64" validate:"required,base64"`
}

// JoinRequest is the HTTP request body for a join job. Either Files or
// SourceJobID names the chunks.
type JoinRequest struct {
	Files       []FileDTO `json:"files" validate:"required_without=SourceJobID,omitempty,dive"`
	SourceJobID string    `json:"source_job_id" validate:"required_without=Files,omitempty,startswith=job-"`
	Mode        string    `json:"mode" validate:"required,oneof=SAI LAR"`
	Suffix      string    `json:"suffix" validate:"omitempty,max=128,excludesall=/\\"`
	PushToS3    bool      `json:"push_to_s3"`
}

// AnkiRequest is the HTTP request body for an anki job. Either FileNames or
// SourceJobID names the sound files.
type AnkiRequest struct {
	TableBase64 string   `json:"table_base64" validate:"required,base64"`
	FileNames   []string `json:"file_names" validate:"required_without=SourceJobID,omitempty,dive,required"`
	SourceJobID string   `json:"source_job_id" validate:"required_without=FileNames,omitempty,startswith=job-"`
	PushToS3    bool     `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Kind is the operation the job performs.
	Kind string `json:"kind"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	SourceJobID string     `json:"source_job_id,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Size        int64      `json:"size,omitempty"`
	Names       []string   `json:"names,omitempty"`
	URL         string     `json:"url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
