package middleware

import (
	"net/http"
	"strconv"

	"github.com/nexabot/knowledge-api/internal/handlers"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var GetHandler = Wrap(handlers.GetHandler)

var (
	ChatHandler        = Wrap(handlers.ChatHandler)
	ScrapeHandler      = Wrap(handlers.ScrapeHandler)
	BatchScrapeHandler = Wrap(handlers.BatchScrapeHandler)
	KnowledgeHandler   = Wrap(handlers.KnowledgeHandler)
	GetStatusHandler   = Wrap(handlers.GetStatusHandler)
	PostIngestHandler  = Wrap(handlers.PostIngestHandler)
)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received")
	re = injectTrace(re)
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	re = rateLimiter(re)
	return re
}
