package rag

import (
	"net/http"

	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
)

func (s *service) jobError(job jobModel.Job, err error, message string, canRetry bool) jobModel.Job {
	s.logger.Error(message, "error", err)

	job.Error = jobModel.JobError{
		Code:    http.StatusInternalServerError,
		Message: userFacingMessage(message),
		Retry:   canRetry,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// userFacingMessage keeps internal failure codes out of API responses while
// giving the ingestion UI enough to pick between retry, a different URL, or
// manual entry.
func userFacingMessage(code string) string {
	switch code {
	case "SCRAPE_FAILURE":
		return "We couldn't read that page. Try again, try a different URL, or enter the content manually."
	case "FILE_EXTRACTION_FAILURE":
		return "We couldn't read that document. Check the file type and try again."
	case "EMBEDDING_FAILURE":
		return "Knowledge processing failed. Please try again."
	default:
		return "Internal Server Error"
	}
}
