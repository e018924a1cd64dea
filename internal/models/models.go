package models

import "time"

// MediaKind classifies an attachment payload.
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaCSV      MediaKind = "csv"
	MediaJSON     MediaKind = "json"
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaUnknown  MediaKind = "unknown"
)

// AttachmentRef is one incoming file reference. Payload is the decoded
// content; NeedsConversion marks formats the generator cannot consume
// directly.
type AttachmentRef struct {
	Name            string    `json:"name"`
	Payload         []byte    `json:"-"`
	MediaKind       MediaKind `json:"media_kind"`
	NeedsConversion bool      `json:"needs_conversion"`
}

// DeploymentRequest is one validated unit of work. Immutable once accepted.
type DeploymentRequest struct {
	Task          string          `json:"task"`
	Round         int             `json:"round"`
	Nonce         string          `json:"nonce"`
	Brief         string          `json:"brief"`
	Checks        []string        `json:"checks"`
	EvaluationURL string          `json:"evaluation_url"`
	Attachments   []AttachmentRef `json:"attachments"`
}

// GeneratedArtifact is the generator's output for one round.
type GeneratedArtifact struct {
	HTML     string
	AuxFiles map[string]string
	Readme   string
	License  string
}

// HostingStatus tracks static-page activation for a repository.
type HostingStatus string

const (
	HostingInactive HostingStatus = "inactive"
	HostingPending  HostingStatus = "pending"
	HostingActive   HostingStatus = "active"
	HostingFailed   HostingStatus = "failed"
)

// RepoState is the durable external resource for one (task, round) pair.
// It is always re-derived from the hosting provider, never cached.
type RepoState struct {
	Name          string
	Exists        bool
	DefaultBranch string
	Hosting       HostingStatus
	LastCommitSHA string
	HTMLURL       string
	PagesURL      string
}

// NotificationResult records the outcome of callback delivery. Returned to
// the caller only, never persisted.
type NotificationResult struct {
	Attempts   int
	StatusCode int
	Delivered  bool
}

// ResultPayload is the terminal payload posted to the evaluation URL and
// returned to the caller.
type ResultPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce,omitempty"`
	RepoURL   string `json:"repo_url,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	Step      string `json:"step,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	// HostingConfirmed is false when activation did not reach active
	// within the poll budget. The request itself still succeeded.
	HostingConfirmed bool `json:"hosting_confirmed"`
}

// Round is one ledger row recorded per accepted request.
type Round struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Round     int       `json:"round"`
	Nonce     string    `json:"nonce"`
	Status    string    `json:"status"`
	RepoURL   string    `json:"repo_url,omitempty"`
	PagesURL  string    `json:"pages_url,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeployResponse is the immediate intake acknowledgement.
type DeployResponse struct {
	Status  string `json:"status"`
	Task    string `json:"task"`
	Round   int    `json:"round"`
	Message string `json:"message,omitempty"`
}

// StatusResponse reports recorded rounds for a task.
type StatusResponse struct {
	Task   string  `json:"task"`
	Rounds []Round `json:"rounds"`
}
