package client

import (
	"context"
	"errors"
	"fmt"
)

// Подтвержденный статус этапа воркфлоу.
const stageConfirmed = "confirmed"

// ErrStageNotConfirmed возвращается гейтом, когда этап features
// еще не подтвержден и генерация демо недоступна.
var ErrStageNotConfirmed = errors.New("features stage not confirmed")

// FeatureStageGate разрешает генерацию демо только после подтверждения
// этапа функциональности (features) в воркфлоу проекта.
type FeatureStageGate struct {
	client *DemoClient
}

// NewFeatureStageGate создает гейт поверх клиента бэкенда.
func NewFeatureStageGate(client *DemoClient) *FeatureStageGate {
	return &FeatureStageGate{client: client}
}

// GenerationAllowed возвращает ошибку, если этап features еще не подтвержден.
func (g *FeatureStageGate) GenerationAllowed(ctx context.Context, projectID string) error {
	stage, err := g.client.Stage(ctx, projectID, "features")
	if err != nil {
		return fmt.Errorf("failed to check features stage: %w", err)
	}
	if stage.Status != stageConfirmed {
		return fmt.Errorf("%w: stage status is %q", ErrStageNotConfirmed, stage.Status)
	}
	return nil
}
