package service

import (
	"context"

	"medconnect/client/internal/backend"
	notificationdomain "medconnect/client/internal/notification/domain"
)

// Add prepends a local notification and mirrors it to the backend in the background.
// An entry with the same title and message inside the dedup window makes Add a no-op
// returning ("", false). Success entries are dismissed locally after the success TTL.
func (e *Engine) Add(ctx context.Context, typ notificationdomain.Type, title, message string) (string, bool) {
	now := e.nowF()
	cutoff := now.Add(-e.dedupWindow)
	token := e.tokens.Token(ctx)

	var (
		n         notificationdomain.Notification
		gen       uint64
		duplicate bool
	)
	e.mutate(ctx, func() bool {
		for _, existing := range e.cache {
			if existing.SameContent(title, message) && existing.Timestamp.After(cutoff) {
				duplicate = true
				return false
			}
		}
		gen = e.gen.Load()
		n = notificationdomain.Notification{
			ID:        e.newID(),
			Type:      typ,
			Title:     title,
			Message:   message,
			Timestamp: now,
		}
		e.cache = append([]notificationdomain.Notification{n}, e.cache...)
		e.pending.created[n.ID] = &pendingCreate{n: n, inFlight: token != "", deadline: now.Add(e.pendingTTL)}
		if typ == notificationdomain.TypeSuccess {
			e.scheduleDismissLocked(context.WithoutCancel(ctx), gen, n.ID)
		}
		return true
	})
	if duplicate {
		e.logger.Debug("duplicate notification suppressed", "title", title)
		return "", false
	}

	if token != "" {
		e.wg.Add(1)
		go e.createRemote(context.WithoutCancel(ctx), gen, token, n)
	}
	return n.ID, true
}

// createRemote sends n to the backend. The returned server id replaces the local one, and a
// read or dismiss queued while the call was outstanding is then sent for it. Results arriving
// after a reset are dropped.
func (e *Engine) createRemote(ctx context.Context, gen uint64, token string, n notificationdomain.Notification) {
	defer e.wg.Done()
	res, err := e.api.CreateNotification(ctx, token, backend.CreateNotificationRequest{
		Title:   n.Title,
		Message: n.Message,
		Type:    string(n.Type),
	})
	if e.gen.Load() != gen {
		e.logger.Debug("discarding create result from before reset", "local_id", n.ID)
		return
	}
	if err != nil || res == nil || res.ID == "" {
		e.mutate(ctx, func() bool {
			if e.gen.Load() != gen {
				return false
			}
			if c, ok := e.pending.created[n.ID]; ok {
				c.inFlight = false
			}
			delete(e.pending.queued, n.ID)
			return false
		})
		_ = e.handleCallError(ctx, gen, "create", err)
		return
	}

	var (
		op    queuedOp
		stale bool
	)
	e.mutate(ctx, func() bool {
		if e.gen.Load() != gen {
			stale = true
			return false
		}
		e.pending.aliases[n.ID] = res.ID
		op = e.pending.queued[n.ID]
		delete(e.pending.queued, n.ID)
		deadline := e.nowF().Add(e.pendingTTL)
		switch {
		case op.dismiss:
			e.pending.dismissed[res.ID] = deadline
		case op.read:
			e.pending.reads[res.ID] = deadline
		}
		c, ok := e.pending.created[n.ID]
		if !ok {
			return false
		}
		delete(e.pending.created, n.ID)
		c.n.ID = res.ID
		c.remote = true
		c.inFlight = false
		e.pending.created[res.ID] = c
		for i := range e.cache {
			if e.cache[i].ID == n.ID {
				e.cache[i].ID = res.ID
			}
		}
		return true
	})
	if stale {
		return
	}
	switch {
	case op.dismiss:
		_ = e.handleCallError(ctx, gen, "dismiss", e.api.DeleteNotification(ctx, token, res.ID))
	case op.read:
		_ = e.handleCallError(ctx, gen, "mark_read", e.api.MarkRead(ctx, token, res.ID))
	}
}

func (e *Engine) scheduleDismissLocked(ctx context.Context, gen uint64, localID string) {
	e.timers[localID] = e.afterFunc(e.successTTL, func() { e.autoDismiss(ctx, gen, localID) })
}

// autoDismiss drops a local entry from the cache. A copy the server already holds comes
// back on the next poll.
func (e *Engine) autoDismiss(ctx context.Context, gen uint64, localID string) {
	e.mutate(ctx, func() bool {
		if e.gen.Load() != gen {
			return false
		}
		delete(e.timers, localID)
		id := e.pending.resolve(localID)
		delete(e.pending.created, id)
		before := len(e.cache)
		e.cache = without(e.cache, id)
		return len(e.cache) != before
	})
}

// MarkAsRead marks id read locally, then on the backend. The local read is kept whatever the
// backend answers; a 401 wipes the cache instead. A local id whose create is still outstanding
// is sent once the server id is known.
func (e *Engine) MarkAsRead(ctx context.Context, id string) error {
	var (
		localOnly bool
		gen       uint64
	)
	e.mutate(ctx, func() bool {
		gen = e.gen.Load()
		id = e.pending.resolve(id)
		localOnly = e.pending.localOnly(id)
		for i := range e.cache {
			if e.cache[i].ID == id {
				e.cache[i].Read = true
			}
		}
		if c, ok := e.pending.created[id]; ok {
			c.n.Read = true
		}
		if localOnly {
			e.pending.queue(id, queuedOp{read: true})
		} else {
			e.pending.reads[id] = e.nowF().Add(e.pendingTTL)
		}
		return true
	})
	if localOnly {
		return nil
	}
	token := e.tokens.Token(ctx)
	if token == "" {
		return nil
	}
	return e.handleCallError(ctx, gen, "mark_read", e.api.MarkRead(ctx, token, id))
}

// MarkAllAsRead marks every cached entry read locally, then on the backend.
func (e *Engine) MarkAllAsRead(ctx context.Context) error {
	var gen uint64
	e.mutate(ctx, func() bool {
		gen = e.gen.Load()
		now := e.nowF()
		for i := range e.cache {
			e.cache[i].Read = true
		}
		for _, c := range e.pending.created {
			c.n.Read = true
		}
		e.pending.allRead = &pendingMark{at: now, deadline: now.Add(e.pendingTTL)}
		return true
	})
	token := e.tokens.Token(ctx)
	if token == "" {
		return nil
	}
	return e.handleCallError(ctx, gen, "mark_all_read", e.api.MarkAllRead(ctx, token))
}

// Dismiss removes id from the cache immediately, then deletes it on the backend. A local id
// whose create is still outstanding is deleted once the server id is known.
func (e *Engine) Dismiss(ctx context.Context, id string) error {
	var (
		localOnly bool
		gen       uint64
	)
	e.mutate(ctx, func() bool {
		gen = e.gen.Load()
		id = e.pending.resolve(id)
		localOnly = e.pending.localOnly(id)
		if localOnly {
			e.pending.queue(id, queuedOp{dismiss: true})
		} else {
			e.pending.dismissed[id] = e.nowF().Add(e.pendingTTL)
		}
		delete(e.pending.created, id)
		delete(e.pending.reads, id)
		e.cache = without(e.cache, id)
		return true
	})
	if localOnly {
		return nil
	}
	token := e.tokens.Token(ctx)
	if token == "" {
		return nil
	}
	return e.handleCallError(ctx, gen, "dismiss", e.api.DeleteNotification(ctx, token, id))
}

// ClearAll empties the cache immediately, then deletes everything on the backend.
func (e *Engine) ClearAll(ctx context.Context) error {
	var gen uint64
	e.mutate(ctx, func() bool {
		gen = e.gen.Load()
		now := e.nowF()
		e.cache = nil
		e.pending = newPendingState()
		e.pending.cleared = &pendingMark{at: now, deadline: now.Add(e.pendingTTL)}
		e.stopTimersLocked()
		return true
	})
	token := e.tokens.Token(ctx)
	if token == "" {
		return nil
	}
	return e.handleCallError(ctx, gen, "clear_all", e.api.DeleteAllNotifications(ctx, token))
}

func without(list []notificationdomain.Notification, id string) []notificationdomain.Notification {
	out := list[:0:0]
	for _, n := range list {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
