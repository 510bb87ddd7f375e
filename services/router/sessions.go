// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"sync"
	"time"

	"github.com/AleutianAI/TeaDesk/services/llm"
)

// DefaultMaxHistory is the number of turns kept per session.
const DefaultMaxHistory = 20

type session struct {
	turns    []llm.Turn
	lastSeen time.Time
}

// Sessions holds the conversation history of each chat session.
//
// Only open-conversation turns are recorded. Deterministic answers and
// customer-specific exchanges carry customer data and never re-enter a
// prompt through the history.
//
// # Thread Safety
//
// Safe for concurrent use.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	max      int
	now      func() time.Time
}

// NewSessions creates a history store keeping at most limit turns per
// session. limit <= 0 means DefaultMaxHistory.
func NewSessions(limit int) *Sessions {
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	return &Sessions{
		sessions: make(map[string]*session),
		max:      limit,
		now:      time.Now,
	}
}

// History returns a copy of the last n turns of a session, oldest first.
// n <= 0 returns the whole history.
func (s *Sessions) History(id string, n int) []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	turns := sess.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]llm.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds turns to a session, dropping the oldest beyond the cap.
func (s *Sessions) Append(id string, turns ...llm.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if over := len(sess.turns) - s.max; over > 0 {
		sess.turns = append([]llm.Turn(nil), sess.turns[over:]...)
	}
	sess.lastSeen = s.now()
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune forgets sessions idle since before cutoff and returns how many
// were removed.
func (s *Sessions) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
