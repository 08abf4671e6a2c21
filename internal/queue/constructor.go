package queue

import (
	"github.com/fedibridge/skybridge/internal/sync"
)

type Queue struct {
	orchestrator *sync.Orchestrator
}

func NewQueue(orchestrator *sync.Orchestrator) *Queue {
	return &Queue{orchestrator: orchestrator}
}

const TaskTypeSyncRun = "sync:run"

type SyncRunPayload struct {
	SyncType string `json:"sync_type"`
}
