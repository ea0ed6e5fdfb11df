// Package auth signs users in and out of an arcade session and provisions
// their profiles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/moderation"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

// RegisterRequest is an email sign-up
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
	Username string `json:"username"`
}

// Service is the auth component bound to one session
type Service struct {
	store    tree.Store
	provider Provider
	checker  *moderation.Checker
	sess     *session.Context
	logger   *slog.Logger
}

// NewService creates an auth component
func NewService(store tree.Store, provider Provider, checker *moderation.Checker, sess *session.Context, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		checker:  checker,
		sess:     sess,
		logger:   logger,
	}
}

// Register creates an account, claims its username, writes a fresh profile
// and signs the session in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (session.User, error) {
	if req.Password != req.Confirm {
		return session.User{}, fmt.Errorf("%w: passwords do not match", domain.ErrInvalidRequest)
	}
	username, err := s.checker.Username(req.Username)
	if err != nil {
		return session.User{}, err
	}
	if err := moderation.Email(strings.TrimSpace(req.Email)); err != nil {
		return session.User{}, newError(CodeInvalidEmail, err)
	}

	claim, err := s.store.Get(ctx, claimPath(username))
	if err != nil {
		return session.User{}, fmt.Errorf("checking username: %w", err)
	}
	if claim.Exists() {
		return session.User{}, domain.ErrUsernameTaken
	}

	id, err := s.provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return session.User{}, err
	}
	if err := s.claim(ctx, username, id.UserID); err != nil {
		s.abandon(ctx, id.UserID, "")
		return session.User{}, err
	}

	profile := domain.Profile{
		Username:  username,
		Email:     id.Email,
		Provider:  id.Provider,
		CreatedAt: domain.Millis(time.Now()),
	}
	if err := s.store.Set(ctx, tree.Join("users", id.UserID), profile); err != nil {
		s.abandon(ctx, id.UserID, username)
		return session.User{}, fmt.Errorf("creating profile: %w", err)
	}

	s.logger.Info("user registered", "user_id", id.UserID, "username", username)
	return s.sess.SignIn(id.UserID, username, id.Provider), nil
}

// Login signs in with email and password
func (s *Service) Login(ctx context.Context, email, password string) (session.User, error) {
	id, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return session.User{}, err
	}

	username := domain.DefaultUsername
	snap, err := s.store.Get(ctx, tree.Join("users", id.UserID, "username"))
	if err != nil {
		return session.User{}, fmt.Errorf("reading profile: %w", err)
	}
	var stored string
	if err := snap.Decode(&stored); err == nil && stored != "" {
		username = stored
	}

	s.logger.Info("user signed in", "user_id", id.UserID)
	return s.sess.SignIn(id.UserID, username, id.Provider), nil
}

// FederatedLogin signs in with an OAuth identity, provisioning the profile
// on first login
func (s *Service) FederatedLogin(ctx context.Context, user FederatedUser) (session.User, error) {
	id, err := s.provider.Federate(ctx, user)
	if err != nil {
		return session.User{}, err
	}

	snap, err := s.store.Get(ctx, tree.Join("users", id.UserID))
	if err != nil {
		return session.User{}, fmt.Errorf("reading profile: %w", err)
	}
	if snap.Exists() {
		var p domain.Profile
		if err := snap.Decode(&p); err != nil {
			return session.User{}, fmt.Errorf("decoding profile: %w", err)
		}
		username := p.Username
		if username == "" {
			username = domain.DefaultUsername
		}
		return s.sess.SignIn(id.UserID, username, user.Provider), nil
	}

	username, err := s.provisionName(ctx, user, id.UserID)
	if err != nil {
		return session.User{}, err
	}
	profile := domain.Profile{
		Username:  username,
		Email:     user.Email,
		PhotoURL:  user.PhotoURL,
		Provider:  user.Provider,
		CreatedAt: domain.Millis(time.Now()),
	}
	if err := s.store.Set(ctx, tree.Join("users", id.UserID), profile); err != nil {
		return session.User{}, fmt.Errorf("creating profile: %w", err)
	}

	s.logger.Info("federated profile provisioned", "user_id", id.UserID, "provider", user.Provider)
	return s.sess.SignIn(id.UserID, username, user.Provider), nil
}

// abandon undoes a sign-up that failed after the account was created, so
// the email can register again. A claimed username is released too.
func (s *Service) abandon(ctx context.Context, uid, username string) {
	ctx = context.WithoutCancel(ctx)
	if username != "" {
		if err := s.store.Remove(ctx, claimPath(username)); err != nil {
			s.logger.Warn("failed to release username of abandoned sign-up", "user_id", uid, "username", username, "error", err)
		}
	}
	if err := s.provider.Remove(ctx, uid); err != nil {
		s.logger.Error("orphaned account left by failed sign-up", "user_id", uid, "error", err)
	}
}

// SignOut clears the session
func (s *Service) SignOut() {
	s.sess.SignOut()
}

// ChangeUsername renames the signed-in user
func (s *Service) ChangeUsername(ctx context.Context, name string) error {
	user, err := s.sess.Require()
	if err != nil {
		return err
	}
	username, err := s.checker.Username(name)
	if err != nil {
		return err
	}
	// the profile, not the session, names the claim being given up
	current := user.Username
	snap, err := s.store.Get(ctx, tree.Join("users", user.ID, "username"))
	if err != nil {
		return fmt.Errorf("reading username: %w", err)
	}
	var stored string
	if err := snap.Decode(&stored); err == nil && stored != "" {
		current = stored
	}

	if err := s.claim(ctx, username, user.ID); err != nil {
		return err
	}

	updates := map[string]any{
		tree.Join("users", user.ID, "username"): username,
	}
	if moderation.ClaimKey(current) != moderation.ClaimKey(username) {
		owner, err := s.store.Get(ctx, claimPath(current))
		if err != nil {
			return fmt.Errorf("reading old username: %w", err)
		}
		var ownerID string
		if err := owner.Decode(&ownerID); err == nil && ownerID == user.ID {
			updates[claimPath(current)] = nil
		}
	}
	if err := s.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("saving username: %w", err)
	}

	s.logger.Info("username changed", "user_id", user.ID, "username", username)
	return s.sess.Rename(username)
}

// Profile returns the signed-in user's profile with derived stats
func (s *Service) Profile(ctx context.Context) (domain.ProfileView, error) {
	user, err := s.sess.Require()
	if err != nil {
		return domain.ProfileView{}, err
	}
	snap, err := s.store.Get(ctx, tree.Join("users", user.ID))
	if err != nil {
		return domain.ProfileView{}, fmt.Errorf("reading profile: %w", err)
	}
	if !snap.Exists() {
		return domain.ProfileView{}, domain.ErrUserNotFound
	}
	var p domain.Profile
	if err := snap.Decode(&p); err != nil {
		return domain.ProfileView{}, fmt.Errorf("decoding profile: %w", err)
	}
	return domain.ProfileView{
		UserID:       user.ID,
		Profile:      p,
		AverageScore: p.Stats.AverageScore(),
	}, nil
}

// claim reserves a username for uid; claiming one's own name again succeeds
func (s *Service) claim(ctx context.Context, username, uid string) error {
	_, err := s.store.Transaction(ctx, claimPath(username), func(cur tree.Snapshot) (any, error) {
		var owner string
		if err := cur.Decode(&owner); err != nil {
			return nil, err
		}
		if owner != "" && owner != uid {
			return nil, domain.ErrUsernameTaken
		}
		return uid, nil
	})
	if err != nil && !errors.Is(err, domain.ErrUsernameTaken) {
		return fmt.Errorf("claiming username: %w", err)
	}
	return err
}

// provisionName derives a display name for a first federated login: the
// display name, else the email local part, else the default. A taken or
// rejected name gets a suffix from the user id.
func (s *Service) provisionName(ctx context.Context, user FederatedUser, uid string) (string, error) {
	base := strings.TrimSpace(user.DisplayName)
	if base == "" {
		base, _, _ = strings.Cut(user.Email, "@")
	}
	if base == "" {
		base = domain.DefaultUsername
	}

	suffix := strings.ReplaceAll(uid, "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	candidates := []string{base, truncate(base, 13) + "-" + suffix, domain.DefaultUsername + "-" + suffix}

	for _, c := range candidates {
		name, err := s.checker.Username(c)
		if err != nil {
			continue
		}
		err = s.claim(ctx, name, uid)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, domain.ErrUsernameTaken) {
			return "", err
		}
	}
	return "", domain.ErrUsernameTaken
}

func claimPath(username string) string {
	return tree.Join("usernames", moderation.ClaimKey(username))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
