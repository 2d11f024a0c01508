package service

import (
	"slices"
	"time"

	"github.com/google/uuid"

	notificationdomain "medconnect/client/internal/notification/domain"
)

func newLocalID() string {
	return "local-" + uuid.NewString()
}

// pendingCreate is a locally added notification the server has not yet listed. remote is set
// once the create call returned the server id; inFlight while that call is outstanding.
type pendingCreate struct {
	n        notificationdomain.Notification
	remote   bool
	inFlight bool
	deadline time.Time
}

// queuedOp is a read or dismiss made on a local id before its create returned. It is sent
// against the server id once known.
type queuedOp struct {
	read    bool
	dismiss bool
}

// pendingMark covers every entry created at or before at.
type pendingMark struct {
	at       time.Time
	deadline time.Time
}

// pendingState holds optimistic mutations that a poll must not undo until the server reflects
// them or they expire.
type pendingState struct {
	reads     map[string]time.Time
	dismissed map[string]time.Time
	created   map[string]*pendingCreate
	// aliases maps local ids handed out by Add to server ids.
	aliases map[string]string
	// queued is keyed by local id.
	queued  map[string]queuedOp
	allRead *pendingMark
	cleared *pendingMark
}

func newPendingState() pendingState {
	return pendingState{
		reads:     make(map[string]time.Time),
		dismissed: make(map[string]time.Time),
		created:   make(map[string]*pendingCreate),
		aliases:   make(map[string]string),
		queued:    make(map[string]queuedOp),
	}
}

func (p *pendingState) resolve(id string) string {
	if serverID, ok := p.aliases[id]; ok {
		return serverID
	}
	return id
}

// localOnly reports whether id exists only on this client.
func (p *pendingState) localOnly(id string) bool {
	c, ok := p.created[id]
	return ok && !c.remote
}

// queue records op against a local id whose create is still outstanding. It reports false
// when no create is in flight for id.
func (p *pendingState) queue(id string, op queuedOp) bool {
	c, ok := p.created[id]
	if !ok || c.remote || !c.inFlight {
		return false
	}
	q := p.queued[id]
	q.read = q.read || op.read
	q.dismiss = q.dismiss || op.dismiss
	p.queued[id] = q
	return true
}

func (p *pendingState) expire(now time.Time) {
	for id, deadline := range p.reads {
		if now.After(deadline) {
			delete(p.reads, id)
		}
	}
	for id, deadline := range p.dismissed {
		if now.After(deadline) {
			delete(p.dismissed, id)
		}
	}
	for id, c := range p.created {
		if now.After(c.deadline) {
			delete(p.created, id)
		}
	}
	if p.allRead != nil && now.After(p.allRead.deadline) {
		p.allRead = nil
	}
	if p.cleared != nil && now.After(p.cleared.deadline) {
		p.cleared = nil
	}
}

// reconcile returns the server list with pending mutations re-applied, newest first.
// Mutations the server already reflects are dropped from the pending state.
func (p *pendingState) reconcile(server []notificationdomain.Notification, now time.Time) []notificationdomain.Notification {
	p.expire(now)

	seen := make(map[string]bool, len(server))
	clearedSeen, allReadSeen := false, false
	out := make([]notificationdomain.Notification, 0, len(server)+len(p.created))

	for _, n := range server {
		seen[n.ID] = true
		if _, ok := p.dismissed[n.ID]; ok {
			continue
		}
		if p.cleared != nil && !n.Timestamp.After(p.cleared.at) {
			clearedSeen = true
			continue
		}
		if _, ok := p.reads[n.ID]; ok {
			if n.Read {
				delete(p.reads, n.ID)
			} else {
				n.Read = true
			}
		}
		if p.allRead != nil && !n.Timestamp.After(p.allRead.at) && !n.Read {
			allReadSeen = true
			n.Read = true
		}
		if c, ok := p.created[n.ID]; ok {
			if c.n.Read {
				n.Read = true
			}
			delete(p.created, n.ID)
		}
		out = append(out, n)
	}

	for id := range p.dismissed {
		if !seen[id] {
			delete(p.dismissed, id)
		}
	}
	if !clearedSeen {
		p.cleared = nil
	}
	if !allReadSeen {
		p.allRead = nil
	}

	for _, c := range p.created {
		out = append(out, c.n)
	}
	slices.SortStableFunc(out, func(a, b notificationdomain.Notification) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}
