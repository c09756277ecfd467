package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nexabot/knowledge-api/internal/customHttpClient"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// CRMClient posts candidates to the external lead-creation endpoint. The
// endpoint answers with either the created lead or a duplicate marker;
// neither changes anything on this side.
type CRMClient struct {
	endpoint string
	logger   *logger_i.Logger
}

func NewCRMClient(endpoint string) *CRMClient {
	return &CRMClient{
		endpoint: endpoint,
		logger:   logger_i.NewLogger("CRMClient"),
	}
}

type leadCreateRequest struct {
	BotId     string `json:"botId"`
	Email     string `json:"email"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

func (c *CRMClient) CreateLead(ctx context.Context, candidate knowledgeModel.LeadCandidate) error {
	if c.endpoint == "" {
		c.logger.Debug("no CRM endpoint configured, dropping candidate", "botId", candidate.BotId)
		return nil
	}

	body, err := json.Marshal(leadCreateRequest{
		BotId:     candidate.BotId,
		Email:     candidate.Email,
		SourceURL: candidate.SourceURL,
	})
	if err != nil {
		return fmt.Errorf("marshalling lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building lead request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := customHttpClient.GetPooledClient().Do(req)
	if err != nil {
		return fmt.Errorf("lead endpoint call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lead endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
