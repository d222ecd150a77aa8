package models

import "errors"

// Sentinel errors for the ingestion surface. Handlers map these to
// HTTP statuses; everything else is treated as a persistence failure.
var (
	ErrValidation      = errors.New("validation error")
	ErrSessionNotFound = errors.New("session not found")
)

// EventType classifies a single telemetry fact within a ship session.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"

	EventDocsStart     EventType = "docs_start"
	EventDocsEnd       EventType = "docs_end"
	EventVersionStart  EventType = "version_start"
	EventVersionEnd    EventType = "version_end"
	EventBuildStart    EventType = "build_start"
	EventBuildEnd      EventType = "build_end"
	EventDeployStart   EventType = "deploy_start"
	EventDeployEnd     EventType = "deploy_end"
	EventAnalysisStart EventType = "analysis_start"
	EventAnalysisEnd   EventType = "analysis_end"

	EventGitCommit        EventType = "git_commit"
	EventGitPush          EventType = "git_push"
	EventBuildComplete    EventType = "build_complete"
	EventDeployComplete   EventType = "deploy_complete"
	EventAnalysisComplete EventType = "analysis_complete"

	EventError EventType = "error"
)

var ValidEventTypes = map[EventType]bool{
	EventSessionStart:     true,
	EventSessionEnd:       true,
	EventDocsStart:        true,
	EventDocsEnd:          true,
	EventVersionStart:     true,
	EventVersionEnd:       true,
	EventBuildStart:       true,
	EventBuildEnd:         true,
	EventDeployStart:      true,
	EventDeployEnd:        true,
	EventAnalysisStart:    true,
	EventAnalysisEnd:      true,
	EventGitCommit:        true,
	EventGitPush:          true,
	EventBuildComplete:    true,
	EventDeployComplete:   true,
	EventAnalysisComplete: true,
	EventError:            true,
}

func (t EventType) IsValid() bool {
	return ValidEventTypes[t]
}

// SessionStatus is the lifecycle state of a ship session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusPartial   SessionStatus = "partial"
)

var ValidSessionStatuses = map[SessionStatus]bool{
	StatusRunning:   true,
	StatusCompleted: true,
	StatusFailed:    true,
	StatusPartial:   true,
}

func (s SessionStatus) IsValid() bool {
	return ValidSessionStatuses[s]
}

// GitOperationType identifies the kind of a recorded git operation.
type GitOperationType string

const (
	GitOpCommit GitOperationType = "commit"
	GitOpPush   GitOperationType = "push"
	GitOpPull   GitOperationType = "pull"
	GitOpBranch GitOperationType = "branch"
	GitOpMerge  GitOperationType = "merge"
	GitOpTag    GitOperationType = "tag"
)

var ValidGitOperationTypes = map[GitOperationType]bool{
	GitOpCommit: true,
	GitOpPush:   true,
	GitOpPull:   true,
	GitOpBranch: true,
	GitOpMerge:  true,
	GitOpTag:    true,
}

func (t GitOperationType) IsValid() bool {
	return ValidGitOperationTypes[t]
}

// FileChangeType identifies what happened to a file during a session.
type FileChangeType string

const (
	FileCreated  FileChangeType = "created"
	FileModified FileChangeType = "modified"
	FileDeleted  FileChangeType = "deleted"
)

var ValidFileChangeTypes = map[FileChangeType]bool{
	FileCreated:  true,
	FileModified: true,
	FileDeleted:  true,
}

func (t FileChangeType) IsValid() bool {
	return ValidFileChangeTypes[t]
}
