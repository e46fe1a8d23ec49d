package domain

import (
	"strings"
	"time"
)

// JobKind identifies which generation component a job runs. The string
// value doubles as the ledger component name.
type JobKind string

// Job kinds.
const (
	KindPromptOptimize JobKind = "prompt-optimizer"
	KindCodeExplain    JobKind = "code-explainer"
	KindPromptTest     JobKind = "prompt-tester"
	KindContractIntel  JobKind = "contract-intel"
)

// JobKinds lists every kind in a stable order.
var JobKinds = []JobKind{KindPromptOptimize, KindCodeExplain, KindPromptTest, KindContractIntel}

// ParseJobKind validates a component name.
func ParseJobKind(s string) (JobKind, error) {
	for _, k := range JobKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrValidation("unknown component %q", s)
}

// Format is a requested export format.
type Format string

// Export formats.
const (
	FormatPDF  Format = "pdf"
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
)

// DefaultFormat is used when a submission does not name a format.
const DefaultFormat = FormatPDF

// NormalizeFormat lowercases and trims a requested format. An empty value
// becomes DefaultFormat. Unknown values are passed through; the exporter
// decides the fallback.
func NormalizeFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return DefaultFormat
	}
	return Format(s)
}

// JobInput is the kind-specific payload of a job.
type JobInput struct {
	Text            string `json:"text,omitempty"`
	Chain           string `json:"chain,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
	Network         string `json:"network,omitempty"`
}

// Validate checks that the fields required by kind are present.
func (in JobInput) Validate(kind JobKind) error {
	switch kind {
	case KindContractIntel:
		if strings.TrimSpace(in.ContractAddress) == "" {
			return ErrValidation("contract_address is required")
		}
		if strings.TrimSpace(in.Network) == "" {
			return ErrValidation("network is required")
		}
	default:
		if strings.TrimSpace(in.Text) == "" {
			return ErrValidation("text is required")
		}
	}
	return nil
}

// Subject returns the on-chain subject of a contract-intel input.
func (in JobInput) Subject() Subject {
	return Subject{Address: in.ContractAddress, Network: in.Network}
}

// Job is an admitted generation request. It is immutable once created.
type Job struct {
	ID          string
	Kind        JobKind
	Input       JobInput
	Format      Format
	Wallet      string
	TxSignature string
	SubmittedAt time.Time
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

// Job lifecycle statuses.
const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// JobResult is the payload of a succeeded job.
type JobResult struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Format      Format `json:"format"`
}

// JobRecord is the durable view of a job and its current status.
type JobRecord struct {
	Job
	Status       JobStatus
	Result       *JobResult
	ErrorClass   ErrorClass
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}
