package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/domain"
	"livechat/internal/repository"
)

// PresenceServiceImpl derives Online/Idle/Offline for every user from two
// signals: open websocket connections (counted in memory) and heartbeat
// timestamps (persisted, so presence survives restarts as "last seen").
//
// Derivation order: a heartbeat older than the offline cutoff means Offline
// no matter what the connection counter says (and clears it, since the counter
// can go stale when the process swallows a disconnect). Within the cutoff, an
// open connection means Online, or Idle once the heartbeat passes the idle
// cutoff. No open connection means Offline even with a recent heartbeat; the
// user has nothing to chat through.
type PresenceServiceImpl struct {
	userRepo repository.UserRepository
	cfg      config.PresenceConfig
	logger   *zap.Logger

	mu          sync.Mutex
	connections map[int64]int
	lastKnown   map[int64]domain.PresenceStatus
}

func NewPresenceService(userRepo repository.UserRepository, cfg config.PresenceConfig, logger *zap.Logger) *PresenceServiceImpl {
	return &PresenceServiceImpl{
		userRepo:    userRepo,
		cfg:         cfg,
		logger:      logger,
		connections: make(map[int64]int),
		lastKnown:   make(map[int64]domain.PresenceStatus),
	}
}

// UpdateHeartbeat records client activity. Heartbeats from unknown users are
// ignored rather than failing the request.
func (s *PresenceServiceImpl) UpdateHeartbeat(ctx context.Context, userID int64, role domain.UserRole) error {
	if userID == 0 {
		return nil
	}

	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	return s.userRepo.UpdateHeartbeat(ctx, userID, role, time.Now().UTC())
}

func (s *PresenceServiceImpl) ConnectionOpened(userID int64) {
	if userID == 0 {
		return
	}
	s.mu.Lock()
	s.connections[userID]++
	s.mu.Unlock()
}

func (s *PresenceServiceImpl) ConnectionClosed(userID int64) {
	if userID == 0 {
		return
	}
	s.mu.Lock()
	if n := s.connections[userID]; n <= 1 {
		delete(s.connections, userID)
	} else {
		s.connections[userID] = n - 1
	}
	s.mu.Unlock()
}

// statusLocked derives the status for one user. Callers hold s.mu. A heartbeat
// past the offline cutoff also drops any leftover connection counter for the
// user.
func (s *PresenceServiceImpl) statusLocked(u *domain.User, now time.Time) domain.PresenceStatus {
	sinceSeen := now.Sub(u.LastSeen)
	if sinceSeen > time.Duration(s.cfg.OfflineSeconds)*time.Second {
		delete(s.connections, u.ID)
		return domain.PresenceOffline
	}
	if s.connections[u.ID] > 0 {
		if sinceSeen > time.Duration(s.cfg.IdleSeconds)*time.Second {
			return domain.PresenceIdle
		}
		return domain.PresenceOnline
	}
	return domain.PresenceOffline
}

const presenceListCap = 500

func (s *PresenceServiceImpl) GetUserPresenceList(ctx context.Context) ([]domain.UserPresence, error) {
	users, err := s.userRepo.ListByRole(ctx, domain.UserRoleUser, presenceListCap)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	list := make([]domain.UserPresence, 0, len(users))

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range users {
		u := &users[i]
		list = append(list, domain.UserPresence{
			UserID:          u.ID,
			UserNameOrEmail: u.NameOrEmail(),
			Status:          s.statusLocked(u, now),
			LastSeen:        u.LastSeen,
		})
	}

	return list, nil
}

// DetectPresenceChanges compares each user's derived status against the last
// one reported and returns only the transitions. Called by the presence sweep;
// the caller broadcasts the changes to admins.
func (s *PresenceServiceImpl) DetectPresenceChanges(ctx context.Context) ([]domain.PresenceChange, error) {
	users, err := s.userRepo.ListByRole(ctx, domain.UserRoleUser, presenceListCap)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var changes []domain.PresenceChange

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range users {
		u := &users[i]
		status := s.statusLocked(u, now)

		if prev, ok := s.lastKnown[u.ID]; !ok || prev != status {
			s.lastKnown[u.ID] = status
			changes = append(changes, domain.PresenceChange{
				UserID:   u.ID,
				Status:   status,
				LastSeen: u.LastSeen,
			})
		}
	}

	return changes, nil
}
