package models

import "encoding/json"

// StartSessionRequest is the payload for POST /sessions.
type StartSessionRequest struct {
	ProjectID     string `json:"projectId"`
	Description   string `json:"description"`
	Version       string `json:"version"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
}

// StartSessionResponse is returned from POST /sessions.
type StartSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// RecordEventRequest is the payload for POST /events.
type RecordEventRequest struct {
	SessionID    string          `json:"sessionId"`
	EventType    EventType       `json:"eventType"`
	Timestamp    *int64          `json:"timestamp,omitempty"`
	DurationMS   *int64          `json:"duration,omitempty"`
	Success      *bool           `json:"success,omitempty"` // nil defaults to true
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	FilePath     string          `json:"filePath,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// RecordEventResponse is returned from POST /events.
type RecordEventResponse struct {
	EventID string `json:"eventId"`
}

// RecordGitOperationRequest is the payload for POST /git-operations.
type RecordGitOperationRequest struct {
	SessionID     string           `json:"sessionId"`
	Operation     GitOperationType `json:"operation"`
	FilesChanged  int              `json:"filesChanged"`
	LinesAdded    int              `json:"linesAdded"`
	LinesRemoved  int              `json:"linesRemoved"`
	CommitHash    string           `json:"commitHash,omitempty"`
	CommitMessage string           `json:"commitMessage,omitempty"`
	Success       *bool            `json:"success,omitempty"`
}

// RecordFileOperationRequest is the payload for POST /file-operations.
type RecordFileOperationRequest struct {
	SessionID   string         `json:"sessionId"`
	FilePath    string         `json:"filePath"`
	Operation   FileChangeType `json:"operation"`
	SizeBytes   int64          `json:"sizeBytes"`
	ContentHash string         `json:"contentHash,omitempty"`
}

// RecordDeploymentRequest is the payload for POST /deployments.
type RecordDeploymentRequest struct {
	SessionID     string `json:"sessionId"`
	URL           string `json:"url,omitempty"`
	BuildSize     int64  `json:"buildSizeBytes"`
	EdgeRequests  int64  `json:"edgeRequests"`
	EdgeLatencyMS int64  `json:"edgeLatencyMs"`
	Success       *bool  `json:"success,omitempty"`
}

// RecordPerformanceRequest is the payload for POST /performance.
type RecordPerformanceRequest struct {
	SessionID string  `json:"sessionId"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Baseline  float64 `json:"baseline"`
}

// RecordOperationResponse is returned from the operation-log endpoints.
type RecordOperationResponse struct {
	OperationID string `json:"operationId"`
}

// CompleteSessionRequest is the payload for PUT /sessions/{id}/complete.
type CompleteSessionRequest struct {
	Status   SessionStatus   `json:"status"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// CompleteSessionResponse is returned from PUT /sessions/{id}/complete.
type CompleteSessionResponse struct {
	DurationMS int64         `json:"duration"`
	Status     SessionStatus `json:"status"`
}

// InsightResponse is returned from POST /sessions/{id}/insights. When
// generation fails the response carries Available=false and a reason
// instead of an error status.
type InsightResponse struct {
	Available bool     `json:"available"`
	Reason    string   `json:"reason,omitempty"`
	Insight   *Insight `json:"insight,omitempty"`
}

// DashboardResponse is returned from GET /projects/{id}/dashboard.
type DashboardResponse struct {
	Project        *Project        `json:"project"`
	RecentSessions []*Session      `json:"recentSessions"`
	Metrics        *ProjectSummary `json:"metrics"`
}

// ProjectSummary holds aggregated metrics for one project.
//
// SuccessRate fields are nil when the underlying session count is
// zero: no sessions means "no data", not a perfect score.
type ProjectSummary struct {
	TotalSessions  int          `json:"totalSessions"`
	AvgDurationMS  *int64       `json:"avgDurationMs,omitempty"`
	SuccessRate    *float64     `json:"successRate"`
	SuccessRate7d  *float64     `json:"successRate7d"`
	DailyCounts30d []DailyCount `json:"dailyCounts30d"`
}

// DailyCount is one day's session count in the 30-day trend.
type DailyCount struct {
	Day   string `json:"day"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

// StreamMessage is the JSON message pushed to live subscribers.
type StreamMessage struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId"`
	CurrentStep     string `json:"currentStep,omitempty"`
	StepProgress    int    `json:"stepProgress,omitempty"`
	OverallProgress int    `json:"overallProgress,omitempty"`
	IsError         bool   `json:"isError,omitempty"`
	Status          string `json:"status,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	DB           ServiceCheck `json:"db"`
	SessionCount int          `json:"sessionCount,omitempty"`
}

// ServiceCheck is the health state of one dependency.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
