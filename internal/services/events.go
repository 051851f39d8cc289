package services

import (
	"context"
	"encoding/json"
	"errors"

	"threadspire/internal/logger"
	"threadspire/internal/models"
)

const (
	ThreadSnapshot = "snapshot"
	ThreadUpdated  = "updated"
	ThreadDeleted  = "deleted"
	// ThreadUnavailable is delivered when the thread changed in a way the
	// subscriber may no longer read.
	ThreadUnavailable = "unavailable"
)

const (
	CollectionCreated       = "created"
	CollectionUpdated       = "updated"
	CollectionDeleted       = "deleted"
	CollectionThreadAdded   = "thread_added"
	CollectionThreadRemoved = "thread_removed"
)

// ThreadEvent is what thread subscribers receive. Thread is re-read with
// the subscriber's identity, never taken from the writer.
type ThreadEvent struct {
	Type     string        `json:"type"`
	ThreadID string        `json:"thread_id"`
	Thread   *ThreadDetail `json:"thread,omitempty"`
}

type CollectionEvent struct {
	Type         string             `json:"type"`
	CollectionID string             `json:"collection_id"`
	ThreadID     string             `json:"thread_id,omitempty"`
	Collection   *models.Collection `json:"collection,omitempty"`
}

func ThreadChannel(threadID string) string { return "thread:" + threadID }

// CollectionChannel is keyed by owner: a user follows changes to their own
// collections.
func CollectionChannel(ownerID string) string { return "collections:" + ownerID }

func publishEvent(ctx context.Context, broker Broker, log *logger.Logger, key string, event interface{}) {
	if broker == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err == nil {
		err = broker.Publish(ctx, key, payload)
	}
	if err != nil {
		log.Warn("event publish failed", "key", key, "error", err)
	}
}

// latest forwards values to a one-slot channel, replacing an unread value
// so a slow reader always gets the newest one.
func latest[T any](out chan T, v T) {
	select {
	case out <- v:
	default:
		select {
		case <-out:
		default:
		}
		out <- v
	}
}

// Subscribe follows one thread. Every change is delivered as the thread
// re-read with ctx's identity, so visibility rules apply per subscriber.
// The returned func stops the subscription and closes the channel.
func (s *ThreadService) Subscribe(ctx context.Context, threadID string) (<-chan ThreadEvent, func()) {
	raw, cancel := s.broker.Subscribe(ThreadChannel(threadID))
	out := make(chan ThreadEvent, 1)
	go func() {
		defer close(out)
		for payload := range raw {
			var ev ThreadEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				s.log.Warn("bad thread event payload", "error", err)
				continue
			}
			ev.ThreadID = threadID
			if ev.Type == ThreadUpdated {
				detail, err := s.GetThreadByID(ctx, threadID)
				var (
					nf *NotFoundError
					pa *PrivateAccessError
				)
				switch {
				case err == nil:
					ev.Thread = detail
				case errors.As(err, &nf), errors.As(err, &pa):
					ev.Type = ThreadUnavailable
				default:
					if ctx.Err() == nil {
						s.log.Warn("thread reload failed", "threadID", threadID, "error", err)
					}
					continue
				}
			}
			latest(out, ev)
		}
	}()
	return out, cancel
}

func (s *ThreadService) notify(ctx context.Context, threadID, kind string) {
	publishEvent(ctx, s.broker, s.log, ThreadChannel(threadID), ThreadEvent{Type: kind, ThreadID: threadID})
}

// Subscribe follows the caller's own collections.
func (s *CollectionService) Subscribe(ctx context.Context) (<-chan CollectionEvent, func(), error) {
	userID, err := requireUser(ctx, "follow collections")
	if err != nil {
		return nil, nil, err
	}
	raw, cancel := s.broker.Subscribe(CollectionChannel(userID))
	out := make(chan CollectionEvent, subscriberQueue)
	go func() {
		defer close(out)
		for payload := range raw {
			var ev CollectionEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				s.log.Warn("bad collection event payload", "error", err)
				continue
			}
			select {
			case out <- ev:
			default:
				s.log.Warn("dropping collection event; subscriber is slow", "userID", userID)
			}
		}
	}()
	return out, cancel, nil
}

// subscriberQueue bounds undelivered collection events. Unlike thread
// snapshots they are deltas, so they are queued rather than replaced.
const subscriberQueue = 16

func (s *CollectionService) notify(ctx context.Context, ownerID string, ev CollectionEvent) {
	publishEvent(ctx, s.broker, s.log, CollectionChannel(ownerID), ev)
}
