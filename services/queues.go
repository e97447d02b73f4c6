package services

import (
	"context"
	"time"

	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/db"
	"github.com/n0rdy/guardian/guardian"
)

type QueuesService struct {
	repo   *db.GuardianRepo
	engine *guardian.Engine
}

func NewQueuesService(repo *db.GuardianRepo, engine *guardian.Engine) *QueuesService {
	return &QueuesService{
		repo:   repo,
		engine: engine,
	}
}

func (qs *QueuesService) GetQueues(ctx context.Context) ([]common.QueueResponse, error) {
	records, err := qs.repo.SelectAllQueues(ctx)
	if err != nil {
		return nil, err
	}

	warned := qs.engine.Warned()
	queues := make([]common.QueueResponse, 0, len(records))
	for _, r := range records {
		var owner *string
		if r.HasOwner() {
			username := r.Owner.Username
			owner = &username
		}
		queues = append(queues, common.QueueResponse{
			Name:      r.Name,
			Vhost:     r.Vhost,
			Owner:     owner,
			Warned:    warned.Contains(r.Name),
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return queues, nil
}

func (qs *QueuesService) GetDashboard(ctx context.Context) (*common.DashboardPageData, error) {
	queues, err := qs.GetQueues(ctx)
	if err != nil {
		return nil, err
	}

	thresholds := qs.engine.Thresholds()
	data := &common.DashboardPageData{
		Title:            "Dashboard",
		TotalQueues:      len(queues),
		WarnThreshold:    thresholds.Warn,
		ArchiveThreshold: thresholds.Archive,
		DeleteThreshold:  thresholds.Delete,
		Queues:           make([]common.QueueOverview, 0, len(queues)),
	}
	for _, q := range queues {
		overview := common.QueueOverview{
			Name:    q.Name,
			Vhost:   q.Vhost,
			Warned:  q.Warned,
			Created: time.UnixMilli(q.CreatedAt).UTC().Format(time.DateTime),
		}
		if q.Owner != nil {
			overview.Owner = *q.Owner
			data.OwnedQueues++
		}
		if q.Warned {
			data.WarnedQueues++
		}
		data.Queues = append(data.Queues, overview)
	}
	return data, nil
}
