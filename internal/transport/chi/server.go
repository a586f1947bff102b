package chi

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
	healthuc "github.com/kailas-cloud/dicomgw/internal/usecase/health"
	"github.com/kailas-cloud/dicomgw/internal/usecase/query"
	"github.com/kailas-cloud/dicomgw/internal/version"
)

const (
	contentTypeDICOMJSON = "application/dicom+json"
	contentTypeDICOM     = "application/dicom"
)

// Server implements the DICOMweb and WADO-URI handlers.
type Server struct {
	queries       Querier
	metadata      MetadataProvider
	objects       ObjectProvider
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	queries Querier,
	metadata MetadataProvider,
	objects ObjectProvider,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		queries:       queries,
		metadata:      metadata,
		objects:       objects,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// SearchStudies handles GET /studies.
func (s *Server) SearchStudies(w http.ResponseWriter, r *http.Request) {
	records, err := s.queries.Find(r.Context(), domain.LevelStudy, r.URL.Query(), query.StudyDefaults)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeRecords(w, r, http.StatusOK, records)
}

// SearchSeries handles GET /studies/{study}/series.
func (s *Server) SearchSeries(w http.ResponseWriter, r *http.Request) {
	study, err := pathUID(r, "study")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	params := cloneQuery(r.URL.Query())
	params.Set("StudyInstanceUID", study)

	records, err := s.queries.Find(r.Context(), domain.LevelSeries, params, query.SeriesDefaults)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeRecords(w, r, http.StatusOK, records)
}

// SeriesMetadata handles GET /studies/{study}/series/{series}/metadata.
// Failures still carry whatever records the find produced.
func (s *Server) SeriesMetadata(w http.ResponseWriter, r *http.Request) {
	study, err := pathUID(r, "study")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	series, err := pathUID(r, "series")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	records, err := s.metadata.SeriesMetadata(r.Context(), study, series, r.URL.Query())
	if err != nil {
		status, _ := s.classify(err)
		logger.FromContext(r.Context(), s.logger).Warn("Series metadata incomplete",
			append(logger.SeriesFields(study, series), zap.Int("records", len(records)), zap.Error(err))...)
		s.writeRecords(w, r, status, records)
		return
	}
	s.writeRecords(w, r, http.StatusOK, records)
}

// RetrieveFrame handles GET /studies/{study}/series/{series}/instances/{instance}/frames/{frame}.
func (s *Server) RetrieveFrame(w http.ResponseWriter, r *http.Request) {
	ref, err := pathRef(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if _, err := pathFrame(r); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	data, err := s.objects.Frame(r.Context(), ref)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := writeMultipartFrame(w, r.URL.Path, data); err != nil {
		logger.FromContext(r.Context(), s.logger).Error("Failed to write frame", zap.Error(err))
	}
}

// RetrieveInstance handles GET /wado and GET /viewer/wadouri.
func (s *Server) RetrieveInstance(w http.ResponseWriter, r *http.Request) {
	var ref domain.ObjectRef
	var err error
	if ref.StudyUID, err = queryUID(r, "studyUID"); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if ref.SeriesUID, err = queryUID(r, "seriesUID"); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if ref.InstanceUID, err = queryUID(r, "objectUID"); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	data, err := s.objects.Instance(r.Context(), ref)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeDICOM)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Version string                          `json:"version"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  report.Status,
		Checks:  report.Checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func pathRef(r *http.Request) (domain.ObjectRef, error) {
	var ref domain.ObjectRef
	var err error
	if ref.StudyUID, err = pathUID(r, "study"); err != nil {
		return ref, err
	}
	if ref.SeriesUID, err = pathUID(r, "series"); err != nil {
		return ref, err
	}
	if ref.InstanceUID, err = pathUID(r, "instance"); err != nil {
		return ref, err
	}
	return ref, nil
}

// writeRecords encodes before committing the status, so a record that has
// no JSON form becomes a parse failure instead of an empty 200.
func (s *Server) writeRecords(w http.ResponseWriter, r *http.Request, status int, records []domain.Record) {
	if records == nil {
		records = []domain.Record{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Error("Failed to encode records",
			zap.Int("records", len(records)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrorCodeParseFailure, "records could not be encoded")
		return
	}
	w.Header().Set("Content-Type", contentTypeDICOMJSON)
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func cloneQuery(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// classify maps an error to an HTTP status and code via the handler table.
func (s *Server) classify(err error) (int, ErrorCode) {
	for _, h := range s.errorHandlers {
		if status, code, ok := h(err); ok {
			return status, code
		}
	}
	return http.StatusInternalServerError, ErrorCodeInternalError
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	status, code := s.classify(err)
	if status < http.StatusInternalServerError {
		log.Warn("domain error", zap.Error(err))
	} else {
		log.Error("request failed", zap.String("code", string(code)), zap.Error(err))
	}
	writeError(w, status, code, safeDomainMessage(err))
}
