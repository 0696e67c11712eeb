package kvstore

import "strings"

// Hash field names shared by the job and document/chunk families.
const (
	FieldJobID       = "jobId"
	FieldID          = "id"
	FieldWorkspaceID = "workspace_id"
	FieldDocumentID  = "documentId"
	FieldStatus      = "status"
	FieldFileName    = "file_name"
)

// KeySpace describes where primary records and their indexes live.
//
// Job family:
//
//	<JobPrefix><id>                    hash   {jobId, workspace_id, status, file_name, ...}
//	<JobsAllSet>                       set    every job id
//	<JobsWorkspacePrefix><workspace>   set    job ids of one workspace
//
// Document family:
//
//	<DocumentPrefix><id>                   hash  {id, workspace_id}
//	<DocumentPrefix><id><ChunkSetSuffix>   set   chunk ids owned by the document
//	<ChunkPrefix><id>                      hash  {id, workspace_id, documentId, embedding}
type KeySpace struct {
	JobPrefix           string `yaml:"jobPrefix"`
	JobsAllSet          string `yaml:"jobsAllSet"`
	JobsWorkspacePrefix string `yaml:"jobsWorkspacePrefix"`
	DocumentPrefix      string `yaml:"documentPrefix"`
	ChunkSetSuffix      string `yaml:"chunkSetSuffix"`
	ChunkPrefix         string `yaml:"chunkPrefix"`
}

// DefaultKeySpace returns the key layout used by the ingestion pipelines.
func DefaultKeySpace() KeySpace {
	return KeySpace{
		JobPrefix:           "ontology_job:",
		JobsAllSet:          "ontology_jobs:all",
		JobsWorkspacePrefix: "ontology_jobs:workspace:",
		DocumentPrefix:      "document:",
		ChunkSetSuffix:      ":chunks",
		ChunkPrefix:         "chunk:",
	}
}

// JobKey returns the hash key of a job.
func (k KeySpace) JobKey(id string) string {
	return k.JobPrefix + id
}

// JobPattern matches every job hash key.
func (k KeySpace) JobPattern() string {
	return EscapePattern(k.JobPrefix) + "*"
}

// JobIDFromKey extracts the job id from a job hash key.
func (k KeySpace) JobIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, k.JobPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// WorkspaceJobsKey returns the workspace-scoped job set key.
func (k KeySpace) WorkspaceJobsKey(workspace string) string {
	return k.JobsWorkspacePrefix + workspace
}

// WorkspaceJobsPattern matches every workspace-scoped job set.
func (k KeySpace) WorkspaceJobsPattern() string {
	return EscapePattern(k.JobsWorkspacePrefix) + "*"
}

// WorkspaceFromJobsKey extracts the workspace id from a workspace job set key.
func (k KeySpace) WorkspaceFromJobsKey(key string) (string, bool) {
	ws, ok := strings.CutPrefix(key, k.JobsWorkspacePrefix)
	if !ok || ws == "" {
		return "", false
	}
	return ws, true
}

// DocumentKey returns the hash key of a document.
func (k KeySpace) DocumentKey(id string) string {
	return k.DocumentPrefix + id
}

// DocumentPattern matches document hash keys. It also matches chunk set
// keys; use DocumentIDFromKey to tell them apart.
func (k KeySpace) DocumentPattern() string {
	return EscapePattern(k.DocumentPrefix) + "*"
}

// DocumentIDFromKey extracts the document id from a document hash key.
// Chunk set keys are rejected.
func (k KeySpace) DocumentIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, k.DocumentPrefix)
	if !ok || id == "" {
		return "", false
	}
	if k.ChunkSetSuffix != "" && strings.HasSuffix(id, k.ChunkSetSuffix) {
		return "", false
	}
	return id, true
}

// ChunkSetKey returns the key of the set holding a document's chunk ids.
func (k KeySpace) ChunkSetKey(documentID string) string {
	return k.DocumentPrefix + documentID + k.ChunkSetSuffix
}

// ChunkKey returns the hash key of a chunk.
func (k KeySpace) ChunkKey(id string) string {
	return k.ChunkPrefix + id
}
