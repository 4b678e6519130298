// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package flash provides one-shot notices carried in the session across a redirect.
//
// Messages are queued under a single session data key, so draining the queue
// is part of the same session mutation the identity stage persists.
package flash

import (
	"context"
	"strings"

	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/session"
)

// SessionKey is the session data key holding queued messages.
const SessionKey = "flash"

// Category classifies a message for presentation.
type Category string

// Categories used by the site.
const (
	Success Category = "success"
	Error   Category = "error"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Success, Error:
		return true
	default:
		return false
	}
}

// Message is one queued notice.
type Message struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Queue is the flash queue of one session. It is not safe for concurrent use.
type Queue struct {
	sess *session.Session
}

// New returns the queue backed by sess.
func New(sess *session.Session) *Queue {
	return &Queue{sess: sess}
}

// Enqueue appends a message for the next response that drains the queue.
func (q *Queue) Enqueue(category Category, text string) error {
	category = Category(strings.ToLower(strings.TrimSpace(string(category))))
	if !category.Valid() {
		return oops.Code("FLASH_INVALID_CATEGORY").With("category", string(category)).
			Errorf("unknown flash category %q", category)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return oops.Code("FLASH_EMPTY_MESSAGE").Errorf("flash message text is empty")
	}

	// A corrupt queue is replaced rather than blocking new notices.
	pending, _ := q.pending()
	pending = append(pending, Message{Category: category, Text: text})
	if err := q.sess.Put(SessionKey, pending); err != nil {
		return oops.Code("FLASH_ENQUEUE_FAILED").Wrap(err)
	}
	return nil
}

// Success queues a success message. A nil queue drops it, so handlers
// behind a pipeline without the flash stage need no check.
func (q *Queue) Success(text string) {
	if q != nil {
		_ = q.Enqueue(Success, text)
	}
}

// Error queues an error message. A nil queue drops it.
func (q *Queue) Error(text string) {
	if q != nil {
		_ = q.Enqueue(Error, text)
	}
}

// DrainAll returns queued messages in enqueue order and clears the queue.
// A second call returns an empty slice. An unreadable queue is discarded.
func (q *Queue) DrainAll() []Message {
	if !q.sess.Has(SessionKey) {
		return []Message{}
	}
	pending, _ := q.pending()
	q.sess.Delete(SessionKey)
	if pending == nil {
		return []Message{}
	}
	return pending
}

func (q *Queue) pending() ([]Message, error) {
	var pending []Message
	if _, err := q.sess.Get(SessionKey, &pending); err != nil {
		return nil, oops.Code("FLASH_QUEUE_CORRUPT").Wrap(err)
	}
	return pending, nil
}

// ByCategory groups messages by category, keeping order within each group.
func ByCategory(msgs []Message) map[Category][]string {
	out := make(map[Category][]string, 2)
	for _, m := range msgs {
		out[m.Category] = append(out[m.Category], m.Text)
	}
	return out
}

type contextKey struct{}

// WithQueue returns a context carrying q.
func WithQueue(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, contextKey{}, q)
}

// FromContext returns the request's queue, or nil outside the flash stage.
func FromContext(ctx context.Context) *Queue {
	q, _ := ctx.Value(contextKey{}).(*Queue)
	return q
}
