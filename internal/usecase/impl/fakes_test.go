package impl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tally/internal/domain/entity"
	"tally/internal/domain/repository"
	"tally/internal/domain/service"

	"github.com/google/uuid"
)

// The fakes below stand in for the persistence and crypto layers so the
// business rules can be exercised without a database. The transaction
// manager serializes Execute calls with a mutex, mirroring the row locking
// the real implementation relies on.

type fakeTxManager struct {
	mu      sync.Mutex
	factory *fakeRepoFactory
}

func newFakeTxManager() *fakeTxManager {
	return &fakeTxManager{
		factory: &fakeRepoFactory{
			users:  newFakeUserRepo(),
			tokens: newFakeTokenRepo(),
		},
	}
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(m.factory)
}

type fakeRepoFactory struct {
	users  *fakeUserRepo
	tokens *fakeTokenRepo
}

func (f *fakeRepoFactory) NewUserRepository() repository.UserRepository {
	return f.users
}

func (f *fakeRepoFactory) NewRefreshTokenRepository() repository.RefreshTokenRepository {
	return f.tokens
}

// --- user repository ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*entity.User{}}
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cloned := *user

	return &cloned, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			cloned := *user

			return &cloned, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cloned := *user
	r.users[user.ID] = &cloned

	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()

	return nil
}

// --- refresh token repository ---

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens []*entity.RefreshToken

	// countErr, when set, is returned by CountActiveForUser.
	countErr error
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = uuid.New()
	token.CreatedAt = time.Now()
	cloned := *token
	r.tokens = append(r.tokens, &cloned)

	return nil
}

func (r *fakeTokenRepo) FindMatching(_ context.Context, userID uuid.UUID, matches repository.TokenMatcher) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.tokens {
		if token.UserID == userID && matches(token.TokenHash) {
			cloned := *token

			return &cloned, nil
		}
	}

	return nil, repository.ErrRefreshTokenNotFound
}

func (r *fakeTokenRepo) Rotate(_ context.Context, id uuid.UUID, newTokenHash string, newExpiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.tokens {
		if token.ID == id {
			now := time.Now()
			token.TokenHash = newTokenHash
			token.ExpiresAt = newExpiresAt
			token.LastUsedAt = &now

			return nil
		}
	}

	return repository.ErrRefreshTokenNotFound
}

func (r *fakeTokenRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, token := range r.tokens {
		if token.ID == id {
			r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)

			return nil
		}
	}

	return repository.ErrRefreshTokenNotFound
}

func (r *fakeTokenRepo) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tokens[:0]
	for _, token := range r.tokens {
		if token.UserID != userID {
			kept = append(kept, token)
		}
	}
	r.tokens = kept

	return nil
}

func (r *fakeTokenRepo) DeleteOwned(_ context.Context, userID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, token := range r.tokens {
		if token.ID == id && token.UserID == userID {
			r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)

			return true, nil
		}
	}

	return false, nil
}

func (r *fakeTokenRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.RefreshToken
	for _, token := range r.tokens {
		if token.UserID == userID {
			cloned := *token
			result = append(result, &cloned)
		}
	}
	// Newest first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	return result, nil
}

func (r *fakeTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var deleted int64
	kept := r.tokens[:0]
	for _, token := range r.tokens {
		if token.ExpiresAt.Before(now) {
			deleted++
		} else {
			kept = append(kept, token)
		}
	}
	r.tokens = kept

	return deleted, nil
}

func (r *fakeTokenRepo) CountActiveForUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.countErr != nil {
		return 0, r.countErr
	}

	now := time.Now()
	count := 0
	for _, token := range r.tokens {
		if token.UserID == userID && token.ExpiresAt.After(now) {
			count++
		}
	}

	return count, nil
}

func (r *fakeTokenRepo) all() []*entity.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*entity.RefreshToken, 0, len(r.tokens))
	for _, token := range r.tokens {
		cloned := *token
		result = append(result, &cloned)
	}

	return result
}

// --- crypto stubs ---

// stubPasswordHasher reverses nothing; it just tags the input so mismatches
// are obvious in failure output.
type stubPasswordHasher struct{}

func (stubPasswordHasher) Hash(password string) (string, error) {
	return "pw:" + password, nil
}

func (stubPasswordHasher) Check(password, hash string) bool {
	return hash == "pw:"+password
}

// stubTokenHasher emulates a salted hash: every Hash call yields a distinct
// value, and Matches only inspects the embedded plaintext.
type stubTokenHasher struct {
	mu   sync.Mutex
	salt int
}

func (h *stubTokenHasher) Hash(token string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.salt++

	return fmt.Sprintf("th:%d:%s", h.salt, token), nil
}

func (h *stubTokenHasher) Matches(token, hash string) bool {
	parts := strings.SplitN(hash, ":", 3)

	return len(parts) == 3 && parts[2] == token
}

// stubTokenService issues parseable opaque strings instead of JWTs.
type stubTokenService struct {
	mu         sync.Mutex
	counter    int
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func newStubTokenService() *stubTokenService {
	return &stubTokenService{
		accessTTL:  15 * time.Minute,
		refreshTTL: 15 * 24 * time.Hour,
	}
}

func (s *stubTokenService) issue(kind string, userID uuid.UUID, role entity.Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++

	return fmt.Sprintf("%s|%s|%s|%d", kind, userID, role, s.counter)
}

func (s *stubTokenService) IssueAccessToken(userID uuid.UUID, role entity.Role) (string, error) {
	return s.issue("access", userID, role), nil
}

func (s *stubTokenService) IssueRefreshToken(userID uuid.UUID, role entity.Role) (string, error) {
	return s.issue("refresh", userID, role), nil
}

func (s *stubTokenService) verify(kind, token string) (*service.Claims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 4 || parts[0] != kind {
		return nil, service.ErrSignatureInvalid
	}
	userID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, service.ErrSignatureInvalid
	}

	return &service.Claims{UserID: userID, Role: entity.Role(parts[2]), Type: kind}, nil
}

func (s *stubTokenService) VerifyAccessToken(token string) (*service.Claims, error) {
	return s.verify("access", token)
}

func (s *stubTokenService) VerifyRefreshToken(token string) (*service.Claims, error) {
	return s.verify("refresh", token)
}

func (s *stubTokenService) AccessTokenDuration() time.Duration { return s.accessTTL }

func (s *stubTokenService) RefreshTokenDuration() time.Duration { return s.refreshTTL }
