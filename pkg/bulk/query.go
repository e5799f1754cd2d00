package bulk

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/forcekit/sf-bulk-client/pkg/client"
	"github.com/forcekit/sf-bulk-client/pkg/sobject"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for bulk job operations.
var (
	sfJobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_bulk_jobs_submitted_total",
		Help: "Total bulk query jobs submitted",
	})

	sfJobPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sf_bulk_job_polls_total",
		Help: "Total job status polls by observed state",
	}, []string{"state"})

	sfPollBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sf_bulk_poll_backoff_seconds",
		Help:    "Backoff duration between job status polls",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 60},
	})

	sfPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_bulk_pages_fetched_total",
		Help: "Total result pages fetched",
	})

	sfRowsDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_bulk_rows_decoded_total",
		Help: "Total result rows decoded",
	})

	sfJobsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_bulk_jobs_deleted_total",
		Help: "Total bulk query jobs deleted during teardown",
	})
)

// Done is returned by Next when the result sequence is exhausted.
var Done = errors.New("no more rows")

// Usage errors for the query lifecycle.
var (
	// ErrNotStarted is returned when iterating a query that was never
	// started.
	ErrNotStarted = errors.New("query has not been started")

	// ErrNotReentrant is returned when starting a query that already
	// ran. A query drives one remote job and cannot be reused.
	ErrNotReentrant = errors.New("query is not reentrant")

	// ErrClosed is returned when iterating a query after teardown.
	ErrClosed = errors.New("query is closed")
)

const (
	defaultPageSize     = 1000
	initialPollInterval = 1 * time.Second
	maxPollInterval     = 60 * time.Second

	// defaultTeardownWait bounds the completion wait during teardown of
	// a query that had no deadline of its own, so cleanup cannot hang
	// on a job the server never finishes.
	defaultTeardownWait = 60 * time.Second

	// teardownDeleteTimeout bounds the delete request issued during
	// teardown, which runs detached from the caller's cancellation.
	teardownDeleteTimeout = 30 * time.Second
)

// Options configure a bulk query.
type Options struct {
	// Fields to select. Empty selects every non-composite field of the
	// object, in catalog order.
	Fields []string

	// Where is an optional filter condition expression.
	Where string

	// OrderBy is an optional result ordering clause.
	OrderBy string

	// Limit caps the number of result rows; zero means no limit.
	Limit int

	// PageSize is the number of rows per result page (default 1000).
	PageSize int

	// Timeout bounds the completion wait; zero waits indefinitely.
	Timeout time.Duration
}

type queryState int

const (
	queryNotStarted queryState = iota
	queryActive
	queryClosed
)

// Query drives one bulk query job from submission to teardown and
// iterates its decoded result rows. A query is single-use and must not
// be iterated concurrently; each query owns its job exclusively.
type Query struct {
	client   *client.Client
	schema   *sobject.Schema
	stmt     string
	pageSize int
	timeout  time.Duration
	logger   zerolog.Logger

	state   queryState
	job     *Job
	jobPath string

	rows    [][]string
	cursor  string
	fetched bool
	decoder *sobject.RowDecoder

	// Test seams for the polling loop.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewQuery validates the field selection against the object's catalog,
// builds the query statement, and returns an unstarted query.
func NewQuery(c *client.Client, object *sobject.SObject, opts Options) (*Query, error) {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = object.QueryableFieldNames()
	}

	schema, err := sobject.BuildSchema(object, fields)
	if err != nil {
		return nil, err
	}

	var stmt strings.Builder
	stmt.WriteString("SELECT ")
	stmt.WriteString(strings.Join(fields, ", "))
	stmt.WriteString(" FROM ")
	stmt.WriteString(object.Name)
	if opts.Where != "" {
		stmt.WriteString(" WHERE ")
		stmt.WriteString(opts.Where)
	}
	if opts.OrderBy != "" {
		stmt.WriteString(" ORDER BY ")
		stmt.WriteString(opts.OrderBy)
	}
	if opts.Limit > 0 {
		stmt.WriteString(" LIMIT ")
		stmt.WriteString(strconv.Itoa(opts.Limit))
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Query{
		client:   c,
		schema:   schema,
		stmt:     stmt.String(),
		pageSize: pageSize,
		timeout:  opts.Timeout,
		logger:   log.With().Str("component", "bulk").Str("object", object.Name).Logger(),
		sleep:    sleepContext,
		now:      time.Now,
	}, nil
}

// Statement returns the query statement that is (or will be) submitted.
func (q *Query) Statement() string {
	return q.stmt
}

// Start submits the query job. A query can be started once; starting
// again, or after Close, is a usage error.
func (q *Query) Start(ctx context.Context) error {
	if q.state != queryNotStarted {
		return ErrNotReentrant
	}

	jobsPath, err := q.client.Path(ctx, "jobs")
	if err != nil {
		return err
	}

	resp, err := q.client.Request(ctx, http.MethodPost, jobsPath+"/query", &client.RequestOptions{
		JSON: createJobRequest{Operation: "query", Query: q.stmt},
	})
	if err != nil {
		return err
	}

	var job Job
	if err := client.DecodeJSON(resp, &job); err != nil {
		return err
	}

	q.job = &job
	q.jobPath = jobsPath + "/query/" + job.ID
	q.state = queryActive
	q.logger = q.logger.With().Str("job_id", job.ID).Logger()

	sfJobsSubmittedTotal.Inc()
	q.logger.Info().
		Str("state", string(job.State)).
		Str("statement", q.stmt).
		Msg("Bulk query job submitted")
	return nil
}

// Info fetches the current job descriptor.
func (q *Query) Info(ctx context.Context) (*Job, error) {
	if q.state == queryNotStarted {
		return nil, ErrNotStarted
	}

	resp, err := q.client.Request(ctx, http.MethodGet, q.jobPath, nil)
	if err != nil {
		return nil, err
	}

	var job Job
	if err := client.DecodeJSON(resp, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Await polls the job until it completes. The wait between polls starts
// at one second, doubles after each unsuccessful poll, and is capped at
// sixty seconds; there is no retry count, only the optional deadline.
// A terminal state other than JobComplete, or an unrecognized state,
// fails with an UnexpectedStateError.
func (q *Query) Await(ctx context.Context) error {
	if q.state == queryNotStarted {
		return ErrNotStarted
	}

	start := q.now()
	interval := initialPollInterval

	for {
		job, err := q.Info(ctx)
		if err != nil {
			return err
		}
		sfJobPollsTotal.WithLabelValues(string(job.State)).Inc()

		switch job.State {
		case StateJobComplete:
			q.logger.Debug().
				Int64("records_processed", job.NumberRecordsProcessed).
				Msg("Job complete")
			return nil
		case StateUploadComplete, StateInProgress:
			// still running
		default:
			return &UnexpectedStateError{State: string(job.State)}
		}

		if q.timeout > 0 && q.now().Sub(start) >= q.timeout {
			return &TimeoutError{JobID: q.job.ID}
		}

		sfPollBackoffSeconds.Observe(interval.Seconds())
		q.logger.Debug().
			Str("state", string(job.State)).
			Dur("backoff", interval).
			Msg("Job not complete, backing off")

		if err := q.sleep(ctx, interval); err != nil {
			return err
		}

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}

// Next returns the next decoded record. The first call waits for the
// job to complete before fetching the first page; subsequent pages are
// fetched lazily as the local buffer drains, following the cursor
// returned with each page. Pages carrying no data rows are skipped, so
// a cursor always either produces a record or ends the sequence. Next
// returns Done when the buffer is empty and no cursor remains.
func (q *Query) Next(ctx context.Context) (sobject.Record, error) {
	switch q.state {
	case queryNotStarted:
		return nil, ErrNotStarted
	case queryClosed:
		return nil, ErrClosed
	}

	if !q.fetched {
		if err := q.Await(ctx); err != nil {
			return nil, err
		}
		if err := q.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
	for len(q.rows) == 0 && q.cursor != "" {
		if err := q.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
	if len(q.rows) == 0 {
		return nil, Done
	}

	row := q.rows[0]
	q.rows = q.rows[1:]

	record, err := q.decoder.Decode(row)
	if err != nil {
		return nil, err
	}
	sfRowsDecodedTotal.Inc()
	return record, nil
}

// fetchPage requests the next result page. The first fetched page's
// first row is the CSV header: it is consumed to bind the row decoder
// and is never yielded. The locator is forwarded verbatim; an absent
// locator or the literal "null" means no further pages.
func (q *Query) fetchPage(ctx context.Context) error {
	params := url.Values{"maxRecords": {strconv.Itoa(q.pageSize)}}
	if q.cursor != "" {
		params.Set("locator", q.cursor)
	}

	resp, err := q.client.Request(ctx, http.MethodGet, q.jobPath+"/results", &client.RequestOptions{
		Headers: http.Header{"Accept": {"text/csv"}},
		Params:  params,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &client.APIError{
			StatusCode: resp.StatusCode,
			Kind:       client.KindNotFound,
			Message:    "results not yet available",
		}
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return &client.APIError{
			StatusCode: resp.StatusCode,
			Kind:       client.KindUnexpected,
			Message:    "malformed CSV results payload",
			Err:        err,
		}
	}

	locator := resp.Header.Get("Sforce-Locator")
	if locator == "null" {
		locator = ""
	}
	q.cursor = locator

	if !q.fetched {
		if len(rows) == 0 {
			return &client.APIError{
				StatusCode: resp.StatusCode,
				Kind:       client.KindUnexpected,
				Message:    "results page is missing the header row",
			}
		}
		decoder, err := q.schema.Bind(rows[0])
		if err != nil {
			return err
		}
		q.decoder = decoder
		rows = rows[1:]
	}

	q.rows = rows
	q.fetched = true

	sfPagesFetchedTotal.Inc()
	q.logger.Debug().
		Int("rows", len(rows)).
		Bool("more", q.cursor != "").
		Msg("Result page fetched")
	return nil
}

// Abort moves the job into the Aborted state.
func (q *Query) Abort(ctx context.Context) error {
	if q.state == queryNotStarted {
		return ErrNotStarted
	}

	resp, err := q.client.Request(ctx, http.MethodPatch, q.jobPath, &client.RequestOptions{
		JSON: abortJobRequest{State: StateAborted},
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Close tears the job down: if iteration never began, it first waits a
// bounded time for completion so the server has a deletable job, then
// deletes the job. Close is idempotent, never reports an error, and
// must run on every exit path; the delete request is detached from the
// caller's cancellation so cleanup still lands when the caller gave up.
func (q *Query) Close(ctx context.Context) {
	if q.state != queryActive {
		return
	}

	if !q.fetched {
		if q.timeout <= 0 {
			q.timeout = defaultTeardownWait
		}
		if err := q.Await(ctx); err != nil {
			q.logger.Debug().Err(err).Msg("Completion wait during teardown failed")
		}
	}
	q.state = queryClosed

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownDeleteTimeout)
	defer cancel()

	resp, err := q.client.Request(dctx, http.MethodDelete, q.jobPath, nil)
	if err != nil {
		q.logger.Debug().Err(err).Msg("Job delete during teardown failed")
		return
	}
	resp.Body.Close()
	sfJobsDeletedTotal.Inc()
	q.logger.Debug().Msg("Job deleted")
}

// sleepContext waits for the duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
