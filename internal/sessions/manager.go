// Package sessions tracks agent working windows: start, end-with-summary,
// and the context bundle a fresh session rehydrates from.
package sessions

import (
	"sync"

	"github.com/google/uuid"

	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/store"
)

// Manager owns the session list, persisted to sessions.json under the
// directory lock like every other durable mutation.
type Manager struct {
	st *store.Store

	mu       sync.RWMutex
	sessions []models.Session
}

func NewManager(st *store.Store) (*Manager, error) {
	sessions, err := st.LoadSessions()
	if err != nil {
		return nil, err
	}
	return &Manager{st: st, sessions: sessions}, nil
}

// Start opens a new active session for agent on a project and returns it.
func (m *Manager) Start(agent, projectID string) (models.Session, error) {
	s := models.Session{
		ID:        uuid.New().String(),
		Agent:     agent,
		ProjectID: projectID,
		StartedAt: models.Now(),
		Status:    models.SessionActive,
	}
	err := m.persist(func(sessions []models.Session) ([]models.Session, error) {
		return append(sessions, s), nil
	})
	if err != nil {
		return models.Session{}, err
	}
	return s, nil
}

// End transitions a session to completed with its summary. Ending an
// already-completed session is a Conflict; an unknown id is NotFound.
func (m *Manager) End(id, summary string) (models.Session, error) {
	var ended models.Session
	err := m.persist(func(sessions []models.Session) ([]models.Session, error) {
		for i := range sessions {
			if sessions[i].ID != id {
				continue
			}
			if sessions[i].Status == models.SessionCompleted {
				return nil, memerr.Newf(memerr.KindConflict, "session %s already completed", id)
			}
			sessions[i].Status = models.SessionCompleted
			sessions[i].EndedAt = models.Now()
			sessions[i].Summary = summary
			ended = sessions[i]
			return sessions, nil
		}
		return nil, memerr.Newf(memerr.KindNotFound, "session %s not found", id)
	})
	if err != nil {
		return models.Session{}, err
	}
	return ended, nil
}

// Get is the read-only view of one session.
func (m *Manager) Get(id string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Session{}, memerr.Newf(memerr.KindNotFound, "session %s not found", id)
}

// All returns a copy of every session, newest last.
func (m *Manager) All() []models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// LastSummary returns the most recent completed session's summary for a
// project's alias set, or empty when there is none.
func (m *Manager) LastSummary(aliases []string) string {
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		aliasSet[a] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.Status != models.SessionCompleted || s.Summary == "" {
			continue
		}
		if len(aliasSet) > 0 && !aliasSet[s.ProjectID] {
			continue
		}
		return s.Summary
	}
	return ""
}

// persist applies fn to the freshly reloaded session list under the lock.
// fn returns the new list, or an error to abort without writing.
func (m *Manager) persist(fn func([]models.Session) ([]models.Session, error)) error {
	return m.st.WithLock(func() error {
		disk, err := m.st.LoadSessions()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		next, err := fn(disk)
		if err != nil {
			// Keep the reloaded view even when the mutation is refused.
			m.sessions = disk
			return err
		}
		if err := m.st.SaveSessions(next); err != nil {
			return err
		}
		m.sessions = next
		return nil
	})
}
