package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/pkg/logger"
)

// IngestDependencies is the write half of Dependencies.
type IngestDependencies interface {
	IngestOne(ctx context.Context, in service.MetricInput, credential string) error
	IngestBatch(ctx context.Context, items []service.MetricInput, credential string) (service.BatchResult, error)
}

type okResponse struct {
	OK bool `json:"ok"`
}

type batchRequest struct {
	Items []service.MetricInput `json:"items"`
}

// errMissingItems rejects a batch body without an items array.
var errMissingItems = NewKind("api.ingest_batch.items", ErrBadRequest)

type itemError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type batchResponse struct {
	OK     bool        `json:"ok"`
	Count  int         `json:"count"`
	Errors []itemError `json:"errors"`
}

// IngestHandler handles metric submissions.
type IngestHandler struct {
	deps IngestDependencies
	log  logger.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies, log logger.Logger) *IngestHandler {
	return &IngestHandler{deps: deps, log: log}
}

// HandleIngest handles POST /ingest requests.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var in service.MetricInput
	if err := decode(w, r, &in); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.IngestOne(r.Context(), in, r.Header.Get(headerAPIKey)); err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "ingest failed",
				logger.String("code", code),
				logger.String("request_id", RequestIDFrom(r.Context())),
				logger.Error(err),
			)
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleBatch handles POST /ingest/batch requests.
func (h *IngestHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchRequest
	if err := decode(w, r, &req); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Items == nil {
		writeClassified(w, errMissingItems)
		return
	}
	res, err := h.deps.IngestBatch(r.Context(), req.Items, r.Header.Get(headerAPIKey))
	if err != nil {
		writeClassified(w, err)
		return
	}

	resp := batchResponse{
		OK:     len(res.Errors) == 0,
		Count:  res.Count,
		Errors: make([]itemError, 0, len(res.Errors)),
	}
	for _, ie := range res.Errors {
		_, code := classify(ie.Err)
		resp.Errors = append(resp.Errors, itemError{Index: ie.Index, Code: code, Message: ie.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads one JSON document from the body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON document")
	}
	return nil
}
