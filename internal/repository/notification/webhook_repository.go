package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clinicalGym/domain"
	"clinicalGym/pkg/logger"

	"github.com/pobyzaarif/goshortcute"
)

type WebhookConfig struct {
	URL               string
	BasicAuthUsername string
	BasicAuthPassword string
	Timeout           time.Duration
}

// WebhookRepository posts a summary of each finished training job to an
// operator supplied endpoint.
type WebhookRepository struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookRepository(cfg WebhookConfig) *WebhookRepository {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &WebhookRepository{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type jobFinishedPayload struct {
	Event             string     `json:"event"`
	JobID             string     `json:"job_id"`
	Environment       string     `json:"environment"`
	Policy            string     `json:"policy"`
	Status            string     `json:"status"`
	Episodes          int        `json:"episodes"`
	EpisodesCompleted int        `json:"episodes_completed"`
	MeanReward        float64    `json:"mean_reward"`
	StdReward         float64    `json:"std_reward"`
	Error             string     `json:"error,omitempty"`
	CreatedBy         string     `json:"created_by,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

func (r *WebhookRepository) NotifyJobFinished(ctx context.Context, job domain.TrainingJob) error {
	payload := jobFinishedPayload{
		Event:             "training_job.finished",
		JobID:             job.ID,
		Environment:       job.Environment,
		Policy:            job.Policy,
		Status:            string(job.Status),
		Episodes:          job.Episodes,
		EpisodesCompleted: job.EpisodesCompleted,
		MeanReward:        job.MeanReward,
		StdReward:         job.StdReward,
		Error:             job.Error,
		CreatedBy:         job.CreatedBy,
		FinishedAt:        job.FinishedAt,
	}

	payloadByte, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(payloadByte))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	if r.cfg.BasicAuthUsername != "" {
		buildBasicAuth := goshortcute.StringtoBase64Encode(r.cfg.BasicAuthUsername + ":" + r.cfg.BasicAuthPassword)
		req.Header.Add("Authorization", "Basic "+buildBasicAuth)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	logger.Debug("webhook rejected notification", "status", res.StatusCode, "body", string(bodyBytes))

	return fmt.Errorf("webhook returned negative response %v", res.StatusCode)
}
