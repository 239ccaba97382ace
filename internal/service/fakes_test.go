package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"livechat/internal/domain"
	"livechat/internal/repository"
)

// In-memory repository fakes backing the service tests.

type fakeUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) add(name, email string, role domain.UserRole) *domain.User {
	u := &domain.User{
		ID:       r.nextID,
		Name:     name,
		Email:    email,
		Role:     role,
		IsActive: true,
		LastSeen: time.Now().UTC(),
	}
	r.users[u.ID] = u
	r.nextID++
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, dto domain.CreateUserDTO) (int64, error) {
	u := r.add(dto.Name, dto.Email, dto.Role)
	u.PasswordHash = dto.Password
	return u.ID, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (r *fakeUserRepo) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func (r *fakeUserRepo) ListByRole(ctx context.Context, role domain.UserRole, limit int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateHeartbeat(ctx context.Context, id int64, role domain.UserRole, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.IsOnline = true
	u.LastSeen = at
	return nil
}

type fakeChatRepo struct {
	nextSessionID int64
	nextMessageID int64
	sessions      map[int64]*domain.ChatSession
	messages      []*domain.Message
	users         *fakeUserRepo

	// When set, every session lookup fails with it, simulating a storage
	// outage. A missing session is (nil, nil), matching the repository
	// contract.
	lookupErr error
}

func newFakeChatRepo(users *fakeUserRepo) *fakeChatRepo {
	return &fakeChatRepo{
		nextSessionID: 1,
		nextMessageID: 1,
		sessions:      make(map[int64]*domain.ChatSession),
		users:         users,
	}
}

func (r *fakeChatRepo) CreateSession(ctx context.Context, dto repository.CreateChatSessionDTO) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	s := &domain.ChatSession{
		ID:                 r.nextSessionID,
		SessionKey:         dto.SessionKey,
		UserID:             dto.UserID,
		AdminID:            dto.AdminID,
		IsActive:           true,
		CreatedAt:          now,
		StartedAt:          dto.StartedAt,
		MaxDurationMinutes: dto.MaxDurationMinutes,
		LastUserMessageAt:  now,
	}
	r.sessions[s.ID] = s
	r.nextSessionID++
	copied := *s
	return &copied, nil
}

func (r *fakeChatRepo) GetActiveSessionByKey(ctx context.Context, sessionKey string) (*domain.ChatSession, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, s := range r.sessions {
		if s.SessionKey == sessionKey && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeChatRepo) GetActiveSessionByUser(ctx context.Context, userID int64) (*domain.ChatSession, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeChatRepo) GetActiveSessionForAdmin(ctx context.Context, userID, adminID int64) (*domain.ChatSession, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive && (s.AdminID == nil || *s.AdminID == adminID) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeChatRepo) ListActiveSessionsForAdmin(ctx context.Context, adminID int64) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	for _, s := range r.sessions {
		if s.IsActive && (s.AdminID == nil || *s.AdminID == adminID) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeChatRepo) ClaimSession(ctx context.Context, sessionID, adminID int64) (bool, error) {
	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive || s.AdminID != nil {
		return false, nil
	}
	id := adminID
	s.AdminID = &id
	return true, nil
}

func (r *fakeChatRepo) UpdateSessionTimer(ctx context.Context, sessionID int64, startedAt *time.Time, maxDurationMinutes int) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("chat session not found")
	}
	if s.StartedAt == nil {
		s.StartedAt = startedAt
	}
	s.MaxDurationMinutes = maxDurationMinutes
	return nil
}

func (r *fakeChatRepo) TouchLastUserMessage(ctx context.Context, sessionID int64, at time.Time) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("chat session not found")
	}
	s.LastUserMessageAt = at
	return nil
}

func (r *fakeChatRepo) CloseSession(ctx context.Context, sessionID int64) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("chat session not found")
	}
	s.IsActive = false
	return nil
}

func (r *fakeChatRepo) CreateMessage(ctx context.Context, dto repository.CreateMessageDTO) (*domain.Message, error) {
	m := &domain.Message{
		ID:            r.nextMessageID,
		ChatSessionID: dto.ChatSessionID,
		SenderID:      dto.SenderID,
		Content:       dto.Content,
		Type:          dto.Type,
		CreatedAt:     time.Now().UTC(),
	}
	r.messages = append(r.messages, m)
	r.nextMessageID++
	copied := *m
	return &copied, nil
}

func (r *fakeChatRepo) ListHistory(ctx context.Context, sessionID int64, limit int) ([]domain.ChatHistoryItem, error) {
	var items []domain.ChatHistoryItem
	for _, m := range r.messages {
		if m.ChatSessionID != sessionID {
			continue
		}
		role := domain.UserRoleUser
		if u, ok := r.users.users[m.SenderID]; ok {
			role = u.Role
		}
		items = append(items, domain.ChatHistoryItem{
			ID:        m.ID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			IsSeen:    m.IsSeen,
			Role:      role,
			SenderID:  m.SenderID,
			Type:      m.Type,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (r *fakeChatRepo) MarkMessagesSeen(ctx context.Context, sessionID, senderID int64) ([]int64, error) {
	var ids []int64
	for _, m := range r.messages {
		if m.ChatSessionID == sessionID && m.SenderID == senderID && !m.IsSeen {
			m.IsSeen = true
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *fakeChatRepo) CountUnseenFromSender(ctx context.Context, sessionID, senderID int64) (int64, error) {
	var n int64
	for _, m := range r.messages {
		if m.ChatSessionID == sessionID && m.SenderID == senderID && !m.IsSeen {
			n++
		}
	}
	return n, nil
}

func (r *fakeChatRepo) UnseenCountsForAdmin(ctx context.Context, adminID int64) (map[int64]int64, error) {
	counts := make(map[int64]int64)
	for _, s := range r.sessions {
		if !s.IsActive || (s.AdminID != nil && *s.AdminID != adminID) {
			continue
		}
		n, _ := r.CountUnseenFromSender(ctx, s.ID, s.UserID)
		if n > 0 {
			counts[s.ID] = n
		}
	}
	return counts, nil
}

func (r *fakeChatRepo) ListIdleTerminationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var candidates []*domain.ChatSession
	for _, s := range r.sessions {
		if s.IsActive && s.IdleTerminationSentAt == nil && s.LastUserMessageAt.Before(cutoff) {
			candidates = append(candidates, s)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastUserMessageAt.Before(candidates[j].LastUserMessageAt)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	keys := make([]string, 0, len(candidates))
	for _, s := range candidates {
		keys = append(keys, s.SessionKey)
	}
	return keys, nil
}

func (r *fakeChatRepo) TerminateIdleSession(ctx context.Context, sessionKey string, senderID int64, content string, cutoff time.Time) (*domain.Message, error) {
	for _, s := range r.sessions {
		if s.SessionKey != sessionKey {
			continue
		}
		if !s.IsActive || s.IdleTerminationSentAt != nil || !s.LastUserMessageAt.Before(cutoff) {
			return nil, nil
		}
		now := time.Now().UTC()
		s.IsActive = false
		s.IdleTerminationSentAt = &now
		return r.CreateMessage(ctx, repository.CreateMessageDTO{
			ChatSessionID: s.ID,
			SenderID:      senderID,
			Content:       content,
			Type:          domain.MessageTypeSystem,
		})
	}
	return nil, nil
}

type fakeSettingsRepo struct {
	settings domain.ChatSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: domain.ChatSettings{
		ID:                        1,
		MaxUserMessageLength:      domain.DefaultMaxUserMessageLength,
		MaxSessionDurationMinutes: domain.DefaultMaxSessionDurationMinutes,
		UpdatedAt:                 time.Now().UTC(),
	}}
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*domain.ChatSettings, error) {
	copied := r.settings
	return &copied, nil
}

func (r *fakeSettingsRepo) UpdateMaxUserMessageLength(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error) {
	r.settings.MaxUserMessageLength = value
	r.settings.UpdatedByAdminID = &adminID
	r.settings.UpdatedAt = time.Now().UTC()
	copied := r.settings
	return &copied, nil
}

func (r *fakeSettingsRepo) UpdateMaxSessionDurationMinutes(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error) {
	r.settings.MaxSessionDurationMinutes = value
	r.settings.UpdatedByAdminID = &adminID
	r.settings.UpdatedAt = time.Now().UTC()
	copied := r.settings
	return &copied, nil
}
