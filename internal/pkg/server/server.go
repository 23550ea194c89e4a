package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/database"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
	"github.com/anicoll/sensor-ledger/internal/pkg/quality"
	"github.com/anicoll/sensor-ledger/pkg/api"
)

var (
	errArchiveDisabled = errors.New("archive is not configured")
	errInvalidLimit    = errors.New("limit must be a positive integer")
)

var _ api.ServerInterface = (*server)(nil)

type snapshotSource interface {
	Current() (*model.Snapshot, string)
}

type archive interface {
	GetRecords(ctx context.Context, sensorID string, limit int) (database.Records, error)
}

type server struct {
	source  snapshotSource
	archive archive
	stream  http.Handler
	logger  *zap.Logger
}

// New serves the poller's current view. archive and stream may be nil.
func New(source snapshotSource, archive archive, stream http.Handler) *server {
	return &server{source: source, archive: archive, stream: stream, logger: zap.L()}
}

// Handler builds the router. When jwtSecret is non-empty the operations that
// declare bearerAuth, and /ws, require a token.
func (s *server) Handler(jwtSecret string) http.Handler {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware, InstrumentMiddleware)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", s.GetOpenAPI).Methods(http.MethodGet)

	var middlewares []api.MiddlewareFunc
	if jwtSecret != "" {
		middlewares = append(middlewares, OperationAuth(jwtSecret))
	}
	if s.stream != nil {
		stream := s.stream
		if jwtSecret != "" {
			stream = AuthMiddleware(jwtSecret)(stream)
		}
		r.Handle("/ws", stream).Methods(http.MethodGet)
	}

	return api.HandlerWithOptions(s, api.GorillaServerOptions{
		BaseRouter:  r,
		Middlewares: middlewares,
	})
}

func (s *server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, errMsg := s.source.Current()
	resp := api.SnapshotResponse{}
	if snapshot != nil {
		resp.Snapshot = toSnapshot(snapshot)
	}
	if errMsg != "" {
		resp.Error = &errMsg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) GetQuality(w http.ResponseWriter, r *http.Request) {
	snapshot, _ := s.source.Current()
	head, ok := snapshot.Head()
	if !ok {
		writeJSON(w, http.StatusOK, api.QualityResponse{Tier: quality.Indeterminate.String()})
		return
	}
	result := quality.Classify(snapshot.Latest.Temperature, snapshot.Latest.Humidity)
	writeJSON(w, http.StatusOK, api.QualityResponse{
		Tier:        result.Tier.String(),
		PricePerKg:  result.PricePerKg,
		SensorId:    &head.SensorID,
		LedgerIndex: lo.ToPtr(int64(head.Index)),
		Temperature: decimalString(snapshot.Latest.Temperature),
		Humidity:    decimalString(snapshot.Latest.Humidity),
	})
}

func (s *server) GetArchive(w http.ResponseWriter, r *http.Request, params api.GetArchiveParams) {
	if s.archive == nil {
		http.Error(w, errArchiveDisabled.Error(), http.StatusNotFound)
		return
	}
	limit := lo.FromPtr(params.Limit)
	if params.Limit != nil && limit <= 0 {
		http.Error(w, errInvalidLimit.Error(), http.StatusBadRequest)
		return
	}
	records, err := s.archive.GetRecords(r.Context(), lo.FromPtr(params.SensorId), limit)
	if err != nil {
		s.logger.Error("failed to read archive", zap.String("subject", Subject(r.Context())), zap.Error(err))
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(records, func(rec database.Record, _ int) api.ArchivedRecord {
		return api.ArchivedRecord{
			LedgerIndex:   int64(rec.LedgerIndex),
			SensorId:      rec.SensorID,
			RecordedAt:    rec.RecordedAt,
			Temperature:   rec.Temperature,
			Humidity:      rec.Humidity,
			Tier:          rec.Tier,
			PricePerKg:    rec.PricePerKg,
			TransactionId: rec.TransactionID,
			ArchivedAt:    rec.ArchivedAt,
		}
	}))
}

func (s *server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// GetOpenAPI serves the embedded API description.
func (s *server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	swagger, err := api.GetSwagger()
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, swagger)
}

func toSnapshot(snapshot *model.Snapshot) *api.Snapshot {
	return &api.Snapshot{
		Records: lo.Map(snapshot.Records, func(rec model.ReconciledRecord, _ int) api.Record {
			return api.Record{
				Index:         int64(rec.Index),
				Timestamp:     rec.Timestamp,
				SensorId:      rec.SensorID,
				Reading:       toReading(rec.Reading),
				TransactionId: rec.TransactionID,
				DisplayTime:   rec.DisplayTime,
			}
		}),
		Latest:     toReading(snapshot.Latest),
		CapturedAt: snapshot.CapturedAt,
	}
}

func toReading(r model.Reading) api.Reading {
	return api.Reading{
		Temperature: decimalString(r.Temperature),
		Humidity:    decimalString(r.Humidity),
	}
}

func decimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	return lo.ToPtr(d.Decimal.String())
}

func handleError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
