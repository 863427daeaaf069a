package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tempora-hq/timetrack-api/internal/models"
	"github.com/tempora-hq/timetrack-api/internal/repository"
	"github.com/tempora-hq/timetrack-api/internal/session"
)

// defaultRoleID is assigned to SSO-provisioned users until an admin
// grants a real role. It carries no permissions.
const defaultRoleID = "employee"

// PublicUser is the user payload returned to clients after login.
type PublicUser struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	Department string   `json:"department"`
	Roles      []string `json:"roles"`
}

// LoginResponse carries a freshly issued token and its owner.
type LoginResponse struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

// SSOUserInput is the external identity assertion used to provision an
// account ahead of the first SSO login.
type SSOUserInput struct {
	Email       string
	DisplayName string
	TenantID    string
	ObjectID    string
}

// AuthService implements the login, refresh, logout and provisioning
// flows. It owns claim-set construction and the session cache entries
// that make a token usable.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Refresh(ctx context.Context, token string) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	CurrentSession(ctx context.Context, token string) (*session.Entry, error)
	ProvisionSSOUser(ctx context.Context, input SSOUserInput) (*models.User, bool, error)
	AssignRoles(ctx context.Context, userID string, roleIDs []string) error
}

type authService struct {
	userRepo   repository.UserRepository
	auditRepo  repository.AuditLogRepository
	tokens     TokenService
	cache      *session.Cache
	sessionTTL time.Duration
	log        zerolog.Logger
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	tokens TokenService,
	cache *session.Cache,
	sessionTTL time.Duration,
	log zerolog.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		auditRepo:  auditRepo,
		tokens:     tokens,
		cache:      cache,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Login verifies the credentials, builds the claim set from the user's
// current role grants, signs a token and caches the decision. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == "" {
		return nil, ErrSSOOnlyAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(ctx, user)
}

// Refresh supersedes the presented token with a freshly signed one.
// The claim set is rebuilt from the current role state, so refresh is
// the point where stale claims are corrected. Concurrent refreshes of
// the same token each succeed independently; the latest token wins.
func (s *authService) Refresh(ctx context.Context, token string) (*LoginResponse, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenMalformed
	}
	if err != nil {
		return nil, err
	}

	return s.issueToken(ctx, user)
}

// Logout invalidates the token's cache entry. The token itself may
// still verify until its expiry, but without the entry no request will
// be accepted for it.
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.cache.Invalidate(ctx, token)
}

// CurrentSession resolves the live session for a token, if any.
func (s *authService) CurrentSession(ctx context.Context, token string) (*session.Entry, error) {
	entry, err := s.cache.Get(ctx, token)
	if errors.Is(err, session.ErrNotCached) {
		return nil, ErrSessionNotCached
	}
	return entry, err
}

// ProvisionSSOUser looks up the asserted identity by email and creates
// the account if absent: default zero-permission role, all consents
// present but not granted. The caller must still authenticate; no
// token is issued here.
func (s *authService) ProvisionSSOUser(ctx context.Context, input SSOUserInput) (*models.User, bool, error) {
	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	now := time.Now()
	user := &models.User{
		ID:         input.ObjectID,
		Username:   input.DisplayName,
		Email:      input.Email,
		Department: "Unassigned",
		Consents: []models.ConsentRecord{
			{Type: models.ConsentTimeTracking, Granted: false, Date: now, Version: "1.0"},
			{Type: models.ConsentExpenseProcessing, Granted: false, Date: now, Version: "1.0"},
			{Type: models.ConsentAnalytics, Granted: false, Date: now, Version: "1.0"},
		},
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	if err := s.userRepo.ReplaceRoles(ctx, user.ID, []string{defaultRoleID}); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("default role assignment failed")
	}

	s.audit(ctx, models.AuditLog{
		UserID:     user.ID,
		Action:     models.AuditSSOProvisioning,
		ResourceID: user.ID,
		Success:    true,
		Details:    fmt.Sprintf("User auto-provisioned via SSO: %s", input.Email),
	})

	return user, true, nil
}

// AssignRoles replaces the user's role set and invalidates every
// cached session of that user, so revoked permissions stop being
// served immediately rather than at token expiry.
func (s *authService) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.userRepo.ReplaceRoles(ctx, userID, roleIDs); err != nil {
		return err
	}

	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		return err
	}

	s.audit(ctx, models.AuditLog{
		UserID:     userID,
		Action:     models.AuditRoleAssignment,
		ResourceID: userID,
		Success:    true,
		Details:    fmt.Sprintf("roles set to %v", roleIDs),
	})
	return nil
}

// issueToken builds the claim set from current role grants, signs it,
// caches the decision and stamps the user's last login.
func (s *authService) issueToken(ctx context.Context, user *models.User) (*LoginResponse, error) {
	grants, err := s.userRepo.GetRoleGrants(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	roleIDs := make([]string, 0, len(grants))
	permissions := make([]string, 0)
	seen := make(map[string]bool)
	for _, grant := range grants {
		roleIDs = append(roleIDs, grant.RoleID)
		for _, p := range grant.Permissions {
			if !seen[p] {
				seen[p] = true
				permissions = append(permissions, p)
			}
		}
	}

	claims := &Claims{
		Email:       user.Email,
		Username:    user.Username,
		Department:  user.Department,
		Roles:       roleIDs,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
	}

	token, err := s.tokens.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	entry := &session.Entry{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Department:  user.Department,
		Roles:       roleIDs,
		Permissions: permissions,
		ExpiresAt:   claims.ExpiresAt.Unix(),
	}
	if err := s.cache.Put(ctx, token, entry, s.cacheTTL()); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("last login update failed")
	}

	return &LoginResponse{
		Token: token,
		User: PublicUser{
			ID:         user.ID,
			Email:      user.Email,
			Username:   user.Username,
			Department: user.Department,
			Roles:      roleIDs,
		},
	}, nil
}

// cacheTTL keeps the session entry's lifetime at or below the token's.
func (s *authService) cacheTTL() time.Duration {
	if s.sessionTTL > s.tokens.Expiry() {
		return s.tokens.Expiry()
	}
	return s.sessionTTL
}

func (s *authService) audit(ctx context.Context, entry models.AuditLog) {
	if err := s.auditRepo.Record(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
	}
}
