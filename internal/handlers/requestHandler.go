package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nexabot/knowledge-api/internal/adapter"
	"github.com/nexabot/knowledge-api/internal/adapter/utils"
	"github.com/nexabot/knowledge-api/internal/api"
	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var logRH *logger_i.Logger

type newJobData struct {
	id      string
	botId   string
	traceId string
	jobType jobModel.JobType

	//chat
	sessionId       string
	message         string
	responseDelayMs int
	isNewSession    bool

	//scrape + batch
	scrapeURL string
	batch     *knowledgeModel.BatchJob

	//manual content + uploads
	fileName string
	fileType string
	filePath string
	content  string

	chunkSize int
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler accepts a visitor message, queues a background chat job and
// returns the job id to poll. A missing session id starts a new session.
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	var requestData api.ChatRequest
	if !decodeBody(w, request, &requestData) {
		return
	}
	if !ValidateChatRequest(requestData) {
		logRH.Warn("Bad Chat Request", "botId", requestData.BotId)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.SessionID, "Bad Request")
		return
	}

	sessionId := requestData.SessionID
	isNewSession := false
	if sessionId == "" {
		sessionId = utils.GetNewUUID()
		isNewSession = true
		logRH.Debug("New session request", "sessionId", sessionId)
	}

	newJob := newJobData{
		id:              utils.GetNewUUID(),
		botId:           requestData.BotId,
		traceId:         traceFromContext(request),
		jobType:         jobModel.JobTypeChat,
		sessionId:       sessionId,
		message:         requestData.Message,
		responseDelayMs: requestData.ResponseDelayMs,
		isNewSession:    isNewSession,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, sessionId))
}

// ScrapeHandler queues a single-URL ingestion job.
func ScrapeHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	var requestData api.ScrapeRequest
	if !decodeBody(w, request, &requestData) {
		return
	}
	if requestData.BotId == "" || requestData.URL == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "bot_id and url are required")
		return
	}

	newJob := newJobData{
		id:        utils.GetNewUUID(),
		botId:     requestData.BotId,
		traceId:   traceFromContext(request),
		jobType:   jobModel.JobTypeScrape,
		scrapeURL: requestData.URL,
		chunkSize: requestData.ChunkSize,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, ""))
}

// BatchScrapeHandler queues a multi-URL job: an explicit list, a sitemap or a
// same-domain crawl from a seed page.
func BatchScrapeHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	var requestData api.BatchScrapeRequest
	if !decodeBody(w, request, &requestData) {
		return
	}
	if requestData.BotId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "bot_id is required")
		return
	}

	batch := batchJobFromRequest(requestData)
	if batch.Mode == knowledgeModel.BatchModeList && len(requestData.URLs) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "", "urls are required for list mode")
		return
	}
	if len(requestData.URLs) > config.BatchURLLimit {
		WriteErrorResponse(w, http.StatusBadRequest, "",
			fmt.Sprintf("at most %d urls per batch", config.BatchURLLimit))
		return
	}
	if batch.Mode != knowledgeModel.BatchModeList && requestData.URL == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "url is required for sitemap and crawl modes")
		return
	}

	newJob := newJobData{
		id:        utils.GetNewUUID(),
		botId:     requestData.BotId,
		traceId:   traceFromContext(request),
		jobType:   jobModel.JobTypeBatchScrape,
		scrapeURL: requestData.URL,
		batch:     batch,
		chunkSize: requestData.ChunkSize,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, ""))
}

// KnowledgeHandler queues manually entered text for chunking and embedding.
func KnowledgeHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	var requestData api.KnowledgeRequest
	if !decodeBody(w, request, &requestData) {
		return
	}
	if requestData.BotId == "" || requestData.Content == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "bot_id and content are required")
		return
	}

	name := requestData.Name
	if name == "" {
		name = "manual-entry"
	}

	newJob := newJobData{
		id:        utils.GetNewUUID(),
		botId:     requestData.BotId,
		traceId:   traceFromContext(request),
		jobType:   jobModel.JobTypeEmbed,
		fileName:  name,
		content:   requestData.Content,
		chunkSize: requestData.ChunkSize,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, ""))
}

// GetStatusHandler retrieves the current state of a job by id.
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceFromContext(r))

	logRH.Debug("Get Status Request", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler receives a document via multipart/form-data, saves it to
// a temporary directory and queues an extraction job.
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request", "remote", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	botId := r.FormValue("bot_id")
	if botId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "bot_id is required")
		return
	}
	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}

	newJob := newJobData{
		id:       utils.GetNewUUID(),
		botId:    botId,
		traceId:  traceFromContext(r),
		jobType:  jobModel.JobTypeEmbed,
		fileName: docName,
		fileType: filepath.Ext(fileMetadata.Filename),
		filePath: tempFilePath,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, ""))
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the request body reader", "error", err)
		}
	}(r.Body)

	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		logRH.Warn("Undecodable request body", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return false
	}
	return true
}

func traceFromContext(r *http.Request) string {
	if trace, ok := r.Context().Value(config.TRACE_ID_KEY).(string); ok {
		return trace
	}
	return ""
}
