package models

import "encoding/json"

// Project is the aggregate root for sessions. Created lazily on the
// first session for its id, updated incrementally, never deleted.
type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TotalShips  int     `json:"totalShips"`
	LastShipAt  *int64  `json:"lastShipAt,omitempty"`
	HealthScore float64 `json:"healthScore"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// Session is one end-to-end execution of the automated ship workflow.
// Mutated only by completion; child logs are appended, never rewritten.
type Session struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"projectId"`
	Description   string        `json:"description"`
	Version       string        `json:"version,omitempty"`
	RepositoryURL string        `json:"repositoryUrl,omitempty"`
	Status        SessionStatus `json:"status"`
	StartedAt     int64         `json:"startedAt"`
	EndedAt       *int64        `json:"endedAt,omitempty"`
	DurationMS    *int64        `json:"durationMs,omitempty"`
	CommitHash    string        `json:"commitHash,omitempty"`
	DeploymentURL string        `json:"deploymentUrl,omitempty"`
}

// Event is a single timestamped telemetry fact about a session phase.
// Append-only; ordering is the order of durable writes, not client
// wall-clock order.
type Event struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"sessionId"`
	EventType    EventType       `json:"eventType"`
	CreatedAt    int64           `json:"createdAt"`
	Success      bool            `json:"success"`
	DurationMS   *int64          `json:"durationMs,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	FilePath     string          `json:"filePath,omitempty"`
}

// GitOperation is the git-specific operation log.
type GitOperation struct {
	ID            string           `json:"id"`
	SessionID     string           `json:"sessionId"`
	Operation     GitOperationType `json:"operation"`
	FilesChanged  int              `json:"filesChanged"`
	LinesAdded    int              `json:"linesAdded"`
	LinesRemoved  int              `json:"linesRemoved"`
	CommitHash    string           `json:"commitHash,omitempty"`
	CommitMessage string           `json:"commitMessage,omitempty"`
	Success       bool             `json:"success"`
	CreatedAt     int64            `json:"createdAt"`
}

// FileOperation is the per-file operation log.
type FileOperation struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"sessionId"`
	FilePath    string         `json:"filePath"`
	Operation   FileChangeType `json:"operation"`
	SizeBytes   int64          `json:"sizeBytes"`
	ContentHash string         `json:"contentHash,omitempty"`
	CreatedAt   int64          `json:"createdAt"`
}

// Deployment is the deployment operation log.
type Deployment struct {
	ID            string `json:"id"`
	SessionID     string `json:"sessionId"`
	URL           string `json:"url,omitempty"`
	BuildSize     int64  `json:"buildSizeBytes"`
	EdgeRequests  int64  `json:"edgeRequests"`
	EdgeLatencyMS int64  `json:"edgeLatencyMs"`
	Success       bool   `json:"success"`
	CreatedAt     int64  `json:"createdAt"`
}

// PerformanceMetric is a recorded metric value with its baseline.
type PerformanceMetric struct {
	ID        string  `json:"id"`
	SessionID string  `json:"sessionId"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Baseline  float64 `json:"baseline"`
	CreatedAt int64   `json:"createdAt"`
}

// RealtimeStatus is the latest mutable progress projection of a running
// session. It is derived and disposable; the durable copy is retained
// for audit only. Seq is a monotonic stamp assigned by the recorder so
// last-write-wins ordering is observable even though the underlying
// store has no native ordering guarantee.
type RealtimeStatus struct {
	SessionID       string `json:"sessionId"`
	CurrentStep     string `json:"currentStep"`
	StepProgress    int    `json:"stepProgress"`
	OverallProgress int    `json:"overallProgress"`
	IsError         bool   `json:"isError"`
	Seq             uint64 `json:"seq"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// Insight is the immutable AI annotation for a session.
type Insight struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Model     string `json:"model"`
	CreatedAt int64  `json:"createdAt"`
}

// SessionHistory is a session plus its full ordered event and
// operation history, as returned by GET /sessions/{id}.
type SessionHistory struct {
	Session     *Session             `json:"session"`
	Events      []*Event             `json:"events"`
	GitOps      []*GitOperation      `json:"gitOperations"`
	FileOps     []*FileOperation     `json:"fileOperations"`
	Deployments []*Deployment        `json:"deployments"`
	Performance []*PerformanceMetric `json:"performance"`
}
