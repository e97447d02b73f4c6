package services

import (
	"context"

	"github.com/n0rdy/guardian/db"
)

type MonitoringService struct {
	repo *db.GuardianRepo
}

func NewMonitoringService(repo *db.GuardianRepo) *MonitoringService {
	return &MonitoringService{
		repo: repo,
	}
}

func (ms *MonitoringService) IsHealthy(ctx context.Context) bool {
	err := ms.repo.Ping(ctx)
	return err == nil
}
