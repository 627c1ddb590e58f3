package dashboard

import (
	"context"

	"github.com/pocketerp/outpost/internal/store"
)

// Queue is the store surface NotifyQueue decorates: the enqueue path plus
// everything the sync engine mutates.
type Queue interface {
	Enqueue(ctx context.Context, recordType string, payload []byte, scope store.Scope) (string, error)
	ListUnsynced(ctx context.Context) ([]*store.PendingRecord, error)
	MarkSynced(ctx context.Context, id, serverID string) error
	MarkError(ctx context.Context, id, message string) error
}

// NotifyingQueue wraps a queue so every record state change is broadcast to
// dashboard clients. Queue behavior is unchanged; broadcasts happen only
// after the underlying operation succeeded.
type NotifyingQueue struct {
	Queue
	server *Server
}

// NotifyQueue decorates q with dashboard broadcasts.
func NotifyQueue(q Queue, s *Server) *NotifyingQueue {
	return &NotifyingQueue{Queue: q, server: s}
}

func (n *NotifyingQueue) Enqueue(ctx context.Context, recordType string, payload []byte, scope store.Scope) (string, error) {
	id, err := n.Queue.Enqueue(ctx, recordType, payload, scope)
	if err != nil {
		return id, err
	}
	n.server.BroadcastQueueUpdate(QueueUpdateData{
		RecordID:   id,
		RecordType: recordType,
		Action:     "enqueued",
	})
	return id, nil
}

func (n *NotifyingQueue) MarkSynced(ctx context.Context, id, serverID string) error {
	if err := n.Queue.MarkSynced(ctx, id, serverID); err != nil {
		return err
	}
	n.server.BroadcastQueueUpdate(QueueUpdateData{
		RecordID: id,
		Action:   "synced",
		ServerID: serverID,
	})
	return nil
}

func (n *NotifyingQueue) MarkError(ctx context.Context, id, message string) error {
	if err := n.Queue.MarkError(ctx, id, message); err != nil {
		return err
	}
	n.server.BroadcastQueueUpdate(QueueUpdateData{
		RecordID: id,
		Action:   "errored",
		Error:    message,
	})
	return nil
}
