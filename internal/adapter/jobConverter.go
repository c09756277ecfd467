package adapter

import (
	"fmt"
	"time"

	"github.com/nexabot/knowledge-api/internal/api"
	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

func ToInitJobResponse(id string, sessionId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		SessionId: sessionId,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:    string(job.Status),
		Chat:      toChatResult(job.JobPayload),
		Ingestion: toIngestionResult(job.JobPayload.ChunkReport),
		Batch:     toBatchResult(job.JobPayload.Batch),
	}

	return api.JobResponse{
		Id:        job.Id,
		SessionId: job.SessionId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func toChatResult(payload jobModel.JobPayload) *api.ChatResult {
	if payload.Answer == "" && len(payload.Sources) == 0 {
		return nil
	}
	return &api.ChatResult{
		Question:   payload.Message,
		Answer:     payload.Answer,
		Sources:    payload.Sources,
		TokensUsed: payload.TotalTokensUsed,
	}
}

func toIngestionResult(report *knowledgeModel.ChunkReport) *api.IngestionResult {
	if report == nil {
		return nil
	}
	return &api.IngestionResult{
		SourceName:      report.FileName,
		ChunksProcessed: report.ChunksProcessed,
		ChunksFailed:    report.ChunksFailed,
		TotalTokens:     report.TotalTokens,
	}
}

func toBatchResult(batch *knowledgeModel.BatchJob) *api.BatchResult {
	if batch == nil {
		return nil
	}
	outcomes := make([]api.URLResult, 0, len(batch.Outcomes))
	for _, outcome := range batch.Outcomes {
		outcomes = append(outcomes, api.URLResult{
			URL:     outcome.URL,
			Success: outcome.Success,
			Size:    outcome.Size,
			Error:   outcome.Error,
		})
	}
	return &api.BatchResult{
		Mode:      string(batch.Mode),
		Stage:     batch.Stage,
		Total:     len(batch.URLs),
		Completed: batch.Completed,
		Succeeded: batch.Succeeded,
		Failed:    batch.Failed,
		Outcomes:  outcomes,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
