package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
)

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	deductErr error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (r *fakeUserRepo) add(u *model.User) {
	cp := *u
	r.users[u.ID] = &cp
}

func (r *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.SpotifyID == user.SpotifyID {
			user.ID = existing.ID
			user.CreditsRemaining = existing.CreditsRemaining
			cp := *user
			r.users[existing.ID] = &cp
			return nil
		}
	}
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	user.CreditsRemaining = model.InitialCredits
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) UpdateTokens(_ context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.AccessToken = accessToken
	u.RefreshToken = refreshToken
	u.TokenExpiresAt = expiresAt
	return nil
}

func (r *fakeUserRepo) DeductCredits(_ context.Context, id string, cost int) (int, error) {
	if r.deductErr != nil {
		return 0, r.deductErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, apperror.NotFound("user", id)
	}
	if u.CreditsRemaining < cost {
		return -1, nil
	}
	u.CreditsRemaining -= cost
	return u.CreditsRemaining, nil
}

// fakePlaylistRepo is an in-memory repository.PlaylistRepository.
type fakePlaylistRepo struct {
	mu        sync.Mutex
	playlists map[string]*model.Playlist

	createErr error
	updateErr error
}

func newFakePlaylistRepo() *fakePlaylistRepo {
	return &fakePlaylistRepo{playlists: map[string]*model.Playlist{}}
}

func (r *fakePlaylistRepo) Create(_ context.Context, p *model.Playlist) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.playlists[p.ID] = &cp
	return nil
}

func (r *fakePlaylistRepo) GetByIDForUser(_ context.Context, id, userID string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[id]
	if !ok || p.UserID != userID {
		return nil, apperror.NotFound("playlist", id)
	}
	cp := *p
	return &cp, nil
}

func (r *fakePlaylistRepo) ListByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Playlist
	for _, p := range r.playlists {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePlaylistRepo) Update(_ context.Context, p *model.Playlist) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.playlists[p.ID]; !ok {
		return apperror.NotFound("playlist", p.ID)
	}
	p.UpdatedAt = time.Now()
	cp := *p
	r.playlists[p.ID] = &cp
	return nil
}

func (r *fakePlaylistRepo) SetStatus(_ context.Context, id string, status model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[id]
	if !ok {
		return apperror.NotFound("playlist", id)
	}
	p.Status = status
	return nil
}

func (r *fakePlaylistRepo) get(id string) *model.Playlist {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlists[id]
}
