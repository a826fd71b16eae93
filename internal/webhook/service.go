// Package webhook はWebhook登録のドメインロジックを提供する。
package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
	"github.com/hitoshi/quickstore/internal/security"
)

// CreateWebhookInput はWebhook登録リクエストの入力を表す。
type CreateWebhookInput struct {
	URL    string
	Events []string
}

// Service はWebhook登録のサービス層。
type Service struct {
	webhookRepo repository.WebhookRepository
	urlGuard    security.URLGuardService
	metrics     metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilを許容する。
func NewService(webhookRepo repository.WebhookRepository, urlGuard security.URLGuardService, m metrics.Recorder) *Service {
	return &Service{
		webhookRepo: webhookRepo,
		urlGuard:    urlGuard,
		metrics:     m,
	}
}

// CreateWebhook はWebhook登録を検証して作成する。
// URLは必須かつSSRF安全性検証を通過する必要があり、イベントは1件以上必須。
// 登録は有効状態（isActive=true）で作成される。
func (s *Service) CreateWebhook(ctx context.Context, accountID string, in CreateWebhookInput) (*model.Webhook, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	if in.URL == "" {
		return nil, s.validationFailed("Webhook URLは必須です。")
	}
	if err := s.urlGuard.ValidateURL(in.URL); err != nil {
		if s.metrics != nil {
			s.metrics.RecordValidationFailure(model.ErrCodeInvalidURL)
		}
		return nil, model.NewInvalidURLError()
	}
	if len(in.Events) == 0 {
		return nil, s.validationFailed("購読イベントを1件以上指定してください。")
	}
	for _, event := range in.Events {
		if event == "" {
			return nil, s.validationFailed("空のイベント名は指定できません。")
		}
	}

	webhook := &model.Webhook{
		ID:        uuid.New().String(),
		AccountID: accountID,
		URL:       in.URL,
		Events:    in.Events,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	if err := s.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("webhook", "created")
	}

	return webhook, nil
}

func (s *Service) validationFailed(message string) error {
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(model.ErrCodeValidationFailed)
	}
	return model.NewValidationError(message)
}
