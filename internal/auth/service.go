package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleConfig holds the OAuth client registration
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type googleProfile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type Service struct {
	users       UserRepository
	tokens      *TokenManager
	oauth       *oauth2.Config
	userInfoURL string
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(users UserRepository, tokens *TokenManager, google GoogleConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		users:       users,
		tokens:      tokens,
		userInfoURL: googleUserInfoURL,
		logger:      logger,
		now:         time.Now,
	}
	if google.ClientID != "" && google.ClientSecret != "" {
		s.oauth = &oauth2.Config{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURL:  google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		}
	}
	return s
}

// Register creates a client account. Other roles are provisioned by admins.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &User{
		UID:          uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         RoleClient,
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
		CreatedAt:    now,
		LastLogin:    now,
	}

	if _, err := s.users.FindByEmail(ctx, user.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Client registered", zap.String("uid", user.UID))
	return s.session(user)
}

// Login checks credentials and that the account holds the requested role
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if !ValidRole(req.Role) {
		return nil, ErrInvalidRole
	}

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Role != req.Role {
		s.logger.Warn("Sign-in with wrong role",
			zap.String("uid", user.UID),
			zap.String("requested_role", req.Role),
		)
		return nil, &RoleError{Role: req.Role}
	}

	s.touch(ctx, user)
	return s.session(user)
}

// GoogleAuthURL is where the browser is sent to start Google sign-in
func (s *Service) GoogleAuthURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// GoogleCallback exchanges the authorization code and signs the user in.
// Unknown Google accounts become clients.
func (s *Service) GoogleCallback(ctx context.Context, code string) (*Session, error) {
	if s.oauth == nil {
		return nil, ErrOAuthNotConfigured
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("Google code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	profile, err := s.fetchGoogleProfile(ctx, s.oauth.Client(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	user, err := s.users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		s.touch(ctx, user)
	case errors.Is(err, ErrUserNotFound):
		now := s.now().UTC()
		user = &User{
			UID:       uuid.NewString(),
			Email:     strings.ToLower(profile.Email),
			Name:      profile.Name,
			Avatar:    profile.Picture,
			Role:      RoleClient,
			Provider:  ProviderGoogle,
			CreatedAt: now,
			LastLogin: now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Info("Client created from Google sign-in", zap.String("uid", user.UID))
	default:
		return nil, err
	}

	return s.session(user)
}

// Me returns the profile behind a session
func (s *Service) Me(ctx context.Context, uid string) (*User, error) {
	return s.users.FindByID(ctx, uid)
}

func (s *Service) fetchGoogleProfile(ctx context.Context, client *http.Client) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	return &profile, nil
}

func (s *Service) touch(ctx context.Context, user *User) {
	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.UID, now); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("uid", user.UID), zap.Error(err))
		return
	}
	user.LastLogin = now
}

func (s *Service) session(user *User) (*Session, error) {
	token, expires, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}
