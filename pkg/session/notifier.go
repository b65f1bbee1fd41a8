// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import "sync"

// notifier broadcasts status transitions to subscribers. Publishing never
// blocks: a subscriber that falls behind loses intermediate updates but
// always observes the latest status.
type notifier struct {
	mu   sync.Mutex
	subs map[int]chan Status
	next int
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Status)}
}

// subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel is closed on cancel.
func (n *notifier) subscribe() (<-chan Status, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan Status, 1)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers the status to all subscribers, latest-wins.
func (n *notifier) publish(status Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		// Drop the stale buffered update, if any, then deliver.
		select {
		case <-ch:
		default:
		}
		ch <- status
	}
}
