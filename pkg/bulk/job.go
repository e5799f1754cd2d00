// Package bulk implements the Bulk API 2.0 query path: job submission,
// completion polling with exponential backoff, cursor-driven result
// pagination, and typed row decoding.
package bulk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/forcekit/sf-bulk-client/pkg/client"
)

// State is a bulk job state as reported by the server. The client never
// simulates transitions locally; state is authoritative only as last
// observed.
type State string

const (
	// StateUploadComplete means the job is queued for processing.
	StateUploadComplete State = "UploadComplete"

	// StateInProgress means the server is processing the job.
	StateInProgress State = "InProgress"

	// StateJobComplete is the only state from which results may be
	// fetched.
	StateJobComplete State = "JobComplete"

	// StateFailed is a terminal failure state.
	StateFailed State = "Failed"

	// StateAborted means the job was aborted before completion.
	StateAborted State = "Aborted"
)

// Terminal reports whether the state ends the polling loop.
func (s State) Terminal() bool {
	switch s {
	case StateJobComplete, StateFailed, StateAborted:
		return true
	}
	return false
}

// Job is a bulk query job descriptor.
type Job struct {
	ID                     string  `json:"id"`
	Operation              string  `json:"operation"`
	Object                 string  `json:"object"`
	CreatedByID            string  `json:"createdById"`
	CreatedDate            string  `json:"createdDate"`
	SystemModstamp         string  `json:"systemModstamp"`
	State                  State   `json:"state"`
	ConcurrencyMode        string  `json:"concurrencyMode"`
	ContentType            string  `json:"contentType"`
	APIVersion             float64 `json:"apiVersion"`
	JobType                string  `json:"jobType"`
	LineEnding             string  `json:"lineEnding"`
	ColumnDelimiter        string  `json:"columnDelimiter"`
	NumberRecordsProcessed int64   `json:"numberRecordsProcessed"`
	Retries                int     `json:"retries"`
	TotalProcessingTime    int64   `json:"totalProcessingTime"`
}

// createJobRequest is the submission body for a query job.
type createJobRequest struct {
	Operation string `json:"operation"`
	Query     string `json:"query"`
}

// abortJobRequest moves a job into the Aborted state.
type abortJobRequest struct {
	State State `json:"state"`
}

// jobListResponse is the wire form of the job list endpoint.
type jobListResponse struct {
	Done           bool   `json:"done"`
	Records        []Job  `json:"records"`
	NextRecordsURL string `json:"nextRecordsUrl"`
}

// JobsPage is one page of the query job listing. Cursor, when non-empty,
// is the path of the next page.
type JobsPage struct {
	Jobs   []Job
	Cursor string
}

// ListJobs returns one page of bulk query jobs. Pass an empty cursor
// for the first page and the previous page's cursor afterwards.
func ListJobs(ctx context.Context, c *client.Client, cursor string) (*JobsPage, error) {
	path := cursor
	if path == "" {
		jobsPath, err := c.Path(ctx, "jobs")
		if err != nil {
			return nil, err
		}
		path = jobsPath + "/query"
	}

	resp, err := c.Request(ctx, http.MethodGet, path, &client.RequestOptions{
		Params: url.Values{"jobType": {"V2Query"}},
	})
	if err != nil {
		return nil, err
	}

	var list jobListResponse
	if err := client.DecodeJSON(resp, &list); err != nil {
		return nil, err
	}

	return &JobsPage{Jobs: list.Records, Cursor: list.NextRecordsURL}, nil
}

// UnexpectedStateError reports a job that reached a terminal state
// other than JobComplete, or an unrecognized state string.
type UnexpectedStateError struct {
	State string
}

// Error implements the error interface.
func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("unexpected job state: %s", e.State)
}

// TimeoutError reports that the completion wait exceeded its deadline.
type TimeoutError struct {
	JobID string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for job %s to complete", e.JobID)
}
