package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, uid string) (*User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, uid string, at time.Time) error {
	args := m.Called(ctx, uid, at)
	return args.Error(0)
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestService(repo UserRepository) *Service {
	return NewService(repo, NewTokenManager("test-secret", time.Hour), GoogleConfig{}, nil)
}

// ==================== Tokens ====================

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, expires, err := tm.Generate(&User{UID: "u1", Email: "a@b.com", Name: "Asha", Role: RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "a@b.com", claims.Email)
}

func TestTokenExpiredAndWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, _, err := tm.Generate(&User{UID: "u1", Role: RoleClient})
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Minute).Parse(token)
	assert.Error(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tm.Parse(token)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", ExtractToken(r))
}

// ==================== Service ====================

func TestLogin(t *testing.T) {
	repo := new(MockUserRepository)
	user := &User{UID: "u1", Email: "dev@cehpoint.co.in", Role: RoleDeveloper, PasswordHash: hashed(t, "hunter22")}
	repo.On("FindByEmail", mock.Anything, "dev@cehpoint.co.in").Return(user, nil)
	repo.On("TouchLastLogin", mock.Anything, "u1", mock.Anything).Return(nil)

	svc := newTestService(repo)
	session, err := svc.Login(context.Background(), LoginRequest{Email: "dev@cehpoint.co.in", Password: "hunter22", Role: RoleDeveloper})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "u1", session.User.UID)
	repo.AssertExpectations(t)
}

func TestLoginWrongRole(t *testing.T) {
	repo := new(MockUserRepository)
	user := &User{UID: "u1", Email: "c@x.com", Role: RoleClient, PasswordHash: hashed(t, "hunter22")}
	repo.On("FindByEmail", mock.Anything, "c@x.com").Return(user, nil)

	svc := newTestService(repo)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "c@x.com", Password: "hunter22", Role: RoleAdmin})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongRole)
	assert.Equal(t, "You do not have admin permissions", FriendlyMessage(err))
	repo.AssertNotCalled(t, "TouchLastLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginBadCredentials(t *testing.T) {
	repo := new(MockUserRepository)
	user := &User{UID: "u1", Email: "c@x.com", Role: RoleClient, PasswordHash: hashed(t, "hunter22")}
	repo.On("FindByEmail", mock.Anything, "c@x.com").Return(user, nil)
	repo.On("FindByEmail", mock.Anything, "nobody@x.com").Return(nil, ErrUserNotFound)

	svc := newTestService(repo)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "c@x.com", Password: "wrong", Role: RoleClient})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@x.com", Password: "wrong", Role: RoleClient})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "c@x.com", Password: "hunter22", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRegisterCreatesClient(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "new@x.com").Return(nil, ErrUserNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
		return u.Role == RoleClient && u.Email == "new@x.com" && u.UID != "" &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")) == nil
	})).Return(nil)

	svc := newTestService(repo)
	session, err := svc.Register(context.Background(), RegisterRequest{Email: " New@x.com ", Password: "secret1", Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, RoleClient, session.User.Role)
	repo.AssertExpectations(t)
}

func TestRegisterDuplicate(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "a@x.com").Return(&User{UID: "u1"}, nil)

	svc := newTestService(repo)
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@x.com", Password: "secret1", Name: "A"})
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestGoogleNotConfigured(t *testing.T) {
	svc := newTestService(new(MockUserRepository))
	_, err := svc.GoogleAuthURL("state")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
	_, err = svc.GoogleCallback(context.Background(), "code")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestGoogleCallbackCreatesClient(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"sub":"123","email":"G@x.com","name":"Gia","picture":"https://img"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer provider.Close()

	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "G@x.com").Return(nil, ErrUserNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
		return u.Provider == ProviderGoogle && u.Role == RoleClient && u.Email == "g@x.com" && u.Avatar == "https://img"
	})).Return(nil)

	svc := NewService(repo, NewTokenManager("s", time.Hour), GoogleConfig{ClientID: "id", ClientSecret: "secret"}, nil)
	svc.oauth.Endpoint = oauth2.Endpoint{TokenURL: provider.URL + "/token", AuthURL: provider.URL + "/auth"}
	svc.userInfoURL = provider.URL + "/userinfo"

	url, err := svc.GoogleAuthURL("xyz")
	require.NoError(t, err)
	assert.Contains(t, url, "state=xyz")

	session, err := svc.GoogleCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "Gia", session.User.Name)
	repo.AssertExpectations(t)
}

// ==================== HTTP ====================

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group(""), NewHandler(svc, "", nil), svc.tokens)
	return r
}

func TestLoginHandlerStatuses(t *testing.T) {
	repo := new(MockUserRepository)
	user := &User{UID: "u1", Email: "c@x.com", Role: RoleClient, PasswordHash: hashed(t, "hunter22")}
	repo.On("FindByEmail", mock.Anything, "c@x.com").Return(user, nil)
	repo.On("TouchLastLogin", mock.Anything, "u1", mock.Anything).Return(nil)
	router := newTestRouter(newTestService(repo))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"email":"c@x.com","password":"hunter22","role":"client"}`, http.StatusOK},
		{"wrong role", `{"email":"c@x.com","password":"hunter22","role":"developer"}`, http.StatusForbidden},
		{"wrong password", `{"email":"c@x.com","password":"nope","role":"client"}`, http.StatusUnauthorized},
		{"bad body", `{"email":"not-an-email"}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestMeRequiresToken(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, "u1").Return(&User{UID: "u1", Name: "Asha", Role: RoleClient}, nil)
	svc := newTestService(repo)
	router := newTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := svc.tokens.Generate(&User{UID: "u1", Role: RoleClient})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Asha", got.Name)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tm := NewTokenManager("s", time.Hour)
	r := gin.New()
	r.GET("/admin", Middleware(tm), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, MustClaims(c).UserID)
	})

	call := func(role string) int {
		token, _, err := tm.Generate(&User{UID: "u1", Role: role})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?token="+token, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call(RoleAdmin))
	assert.Equal(t, http.StatusForbidden, call(RoleClient))
}

func TestGoogleCallbackRejectsBadState(t *testing.T) {
	router := newTestRouter(newTestService(new(MockUserRepository)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=a&code=c", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "b"})
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
