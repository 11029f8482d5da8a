package service_test

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shubham2003-jha/Backend-Project/internal/apierr"
	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
	"github.com/Shubham2003-jha/Backend-Project/internal/repository"
	"github.com/Shubham2003-jha/Backend-Project/internal/service"
	"github.com/Shubham2003-jha/Backend-Project/internal/token"
)

func newTestIssuer() *token.Issuer {
	return token.NewIssuer(
		[]byte("access-secret"),
		[]byte("refresh-secret"),
		time.Minute,
		time.Hour,
		"backend-project",
	)
}

type testEnv struct {
	svc      *service.UserService
	users    *fakeUserRepo
	profiles *fakeProfileRepo
	cache    *fakeProfileCache
	uploader *fakeUploader
	issuer   *token.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	env := &testEnv{
		users:    newFakeUserRepo(),
		profiles: &fakeProfileRepo{},
		cache:    newFakeProfileCache(),
		uploader: &fakeUploader{},
		issuer:   newTestIssuer(),
	}
	env.svc = service.NewUserService(env.users, env.profiles, env.cache, env.uploader, env.issuer, node, zap.NewNop())
	return env
}

func registerInput() service.RegisterInput {
	return service.RegisterInput{
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Username:   "ada",
		Password:   "engine-no-9",
		AvatarPath: "/tmp/avatar.png",
	}
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)
	require.Equal(t, "ada", created.Username)
	require.Equal(t, "ada@example.com", created.Email)
	require.NotEmpty(t, created.AvatarURL)

	result, err := env.svc.Login(ctx, "ada", "engine-no-9")
	require.NoError(t, err)
	require.Equal(t, created.ID, result.User.ID)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)

	identity, err := env.svc.Authenticate(ctx, result.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, created.ID, identity.ID)
	require.Equal(t, "ada", identity.Username)
}

func TestRegisterNormalizesIdentifiers(t *testing.T) {
	env := newTestEnv(t)
	in := registerInput()
	in.Username = "  AdA "
	in.Email = " ADA@Example.COM "

	created, err := env.svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "ada", created.Username)
	require.Equal(t, "ada@example.com", created.Email)

	_, err = env.svc.Login(context.Background(), "ADA@example.com", "engine-no-9")
	require.NoError(t, err)
}

func TestRegisterRequiresAllFields(t *testing.T) {
	env := newTestEnv(t)
	in := registerInput()
	in.Email = "   "

	_, err := env.svc.Register(context.Background(), in)
	requireAPIError(t, err, http.StatusBadRequest, "All fields are required")

	// Validation rejects before any side effect.
	require.Zero(t, env.uploader.callCount())
	require.Zero(t, env.users.createCount())
}

func TestRegisterRequiresAvatar(t *testing.T) {
	env := newTestEnv(t)
	in := registerInput()
	in.AvatarPath = ""

	_, err := env.svc.Register(context.Background(), in)
	requireAPIError(t, err, http.StatusBadRequest, "Avatar file is required")
	require.Zero(t, env.uploader.callCount())
}

func TestRegisterDuplicateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Username = "someone-else"
	_, err = env.svc.Register(ctx, in)
	requireAPIError(t, err, http.StatusConflict, "User with this email or username already exists")
}

func TestRegisterUploadFailureCreatesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.err = errors.New("bucket unreachable")

	_, err := env.svc.Register(context.Background(), registerInput())
	requireAPIError(t, err, http.StatusBadGateway, "Avatar upload failed")
	require.Zero(t, env.users.createCount())
}

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Login(context.Background(), "ghost", "whatever")
	requireAPIError(t, err, http.StatusNotFound, "User does not exist")
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, "ada", "not-the-password")
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid user credentials")
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)
	login, err := env.svc.Login(ctx, "ada", "engine-no-9")
	require.NoError(t, err)

	first, err := env.svc.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.Tokens.RefreshToken, first.Tokens.RefreshToken)

	// The rotated-out token still carries a valid signature but no longer
	// matches the stored copy.
	_, err = env.svc.Refresh(ctx, login.Tokens.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Refresh token is expired or already used")

	_, err = env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsMissingAndGarbageTokens(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Refresh(context.Background(), "")
	requireAPIError(t, err, http.StatusUnauthorized, "Refresh token is missing")

	_, err = env.svc.Refresh(context.Background(), "not-a-jwt")
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid or expired refresh token")
}

func TestLogoutInvalidatesStoredRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)
	login, err := env.svc.Login(ctx, "ada", "engine-no-9")
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, created.ID))

	_, err = env.svc.Refresh(ctx, login.Tokens.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Refresh token is expired or already used")

	// Already-issued access tokens survive until natural expiry.
	_, err = env.svc.Authenticate(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
}

func TestAuthenticateRejectsExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	stale, err := newTestIssuer().WithClock(func() time.Time { return past }).IssuePair(created.ID)
	require.NoError(t, err)

	_, err = env.svc.Authenticate(ctx, stale.AccessToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid or expired access token")
}

func TestAuthenticateRejectsUnknownIdentity(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.issuer.IssuePair(424242)
	require.NoError(t, err)

	_, err = env.svc.Authenticate(context.Background(), pair.AccessToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Unknown user for access token")
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Authenticate(context.Background(), "")
	requireAPIError(t, err, http.StatusUnauthorized, "Access token is missing")
}

// Two refreshes race from the same stored token: both pass the reuse check,
// the later write wins, and the earlier caller's pair dies on first use.
func TestConcurrentRefreshLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)
	login, err := env.svc.Login(ctx, "ada", "engine-no-9")
	require.NoError(t, err)

	var (
		earlier    service.LoginResult
		earlierErr error
	)
	env.users.refreshWriteHook = func() {
		earlier, earlierErr = env.svc.Refresh(ctx, login.Tokens.RefreshToken)
	}

	later, err := env.svc.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, earlierErr)
	require.NotEqual(t, earlier.Tokens.RefreshToken, later.Tokens.RefreshToken)

	_, err = env.svc.Refresh(ctx, earlier.Tokens.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Refresh token is expired or already used")

	_, err = env.svc.Refresh(ctx, later.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, created.ID, "wrong-old", "new-password")
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid old password")

	require.NoError(t, env.svc.ChangePassword(ctx, created.ID, "engine-no-9", "new-password"))

	_, err = env.svc.Login(ctx, "ada", "engine-no-9")
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid user credentials")
	_, err = env.svc.Login(ctx, "ada", "new-password")
	require.NoError(t, err)
}

func TestUpdateAccountRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Username = "grace"
	in.Email = "grace@example.com"
	second, err := env.svc.Register(ctx, in)
	require.NoError(t, err)

	_, err = env.svc.UpdateAccount(ctx, second.ID, "Grace Hopper", first.Email)
	requireAPIError(t, err, http.StatusConflict, "Email already in use")
}

func TestUpdateAvatarReplacesURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	updated, err := env.svc.UpdateAvatar(ctx, created.ID, "/tmp/new-avatar.png")
	require.NoError(t, err)
	require.NotEqual(t, created.AvatarURL, updated.AvatarURL)
	require.Contains(t, updated.AvatarURL, "new-avatar.png")
}

func TestChannelProfileUsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profiles.profile = domain.ChannelProfile{
		ID:              1,
		Username:        "ada",
		SubscriberCount: 3,
	}

	first, err := env.svc.ChannelProfile(ctx, "Ada", 9)
	require.NoError(t, err)
	require.Equal(t, int64(3), first.SubscriberCount)
	require.Equal(t, 1, env.profiles.profileCalls)

	second, err := env.svc.ChannelProfile(ctx, "ada", 9)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, env.profiles.profileCalls)
}

func TestChannelProfileUnknownChannel(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.err = repository.ErrNotFound

	_, err := env.svc.ChannelProfile(context.Background(), "ghost", 0)
	requireAPIError(t, err, http.StatusNotFound, "Channel does not exist")
}

func TestWatchHistoryNeverNil(t *testing.T) {
	env := newTestEnv(t)

	entries, err := env.svc.WatchHistory(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func requireAPIError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, message, apiErr.Message)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User

	creates int

	// refreshWriteHook runs once, before the next SetRefreshToken commits.
	refreshWriteHook func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]domain.User{}}
}

func (r *fakeUserRepo) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return domain.User{}, repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	r.creates++
	return user, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsernameOrEmail(_ context.Context, username, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username || user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *fakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) SetRefreshToken(_ context.Context, userID int64, tok string) error {
	r.mu.Lock()
	hook := r.refreshWriteHook
	r.refreshWriteHook = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.RefreshToken = tok
	r.users[userID] = user
	return nil
}

func (r *fakeUserRepo) SetPasswordHash(_ context.Context, userID int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	r.users[userID] = user
	return nil
}

func (r *fakeUserRepo) UpdateAccount(_ context.Context, userID int64, fullName, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.users {
		if id != userID && existing.Email == email {
			return domain.User{}, repository.ErrDuplicate
		}
	}
	user, ok := r.users[userID]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	user.FullName = fullName
	user.Email = email
	r.users[userID] = user
	return user, nil
}

func (r *fakeUserRepo) SetAvatarURL(_ context.Context, userID int64, url string) (domain.User, error) {
	return r.setURL(userID, url, true)
}

func (r *fakeUserRepo) SetCoverImageURL(_ context.Context, userID int64, url string) (domain.User, error) {
	return r.setURL(userID, url, false)
}

func (r *fakeUserRepo) setURL(userID int64, url string, avatar bool) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	if avatar {
		user.AvatarURL = url
	} else {
		user.CoverImageURL = url
	}
	r.users[userID] = user
	return user, nil
}

type fakeProfileRepo struct {
	profile      domain.ChannelProfile
	history      []domain.WatchHistoryEntry
	err          error
	profileCalls int
}

func (r *fakeProfileRepo) ChannelProfile(context.Context, string, int64) (domain.ChannelProfile, error) {
	r.profileCalls++
	if r.err != nil {
		return domain.ChannelProfile{}, r.err
	}
	return r.profile, nil
}

func (r *fakeProfileRepo) WatchHistory(context.Context, int64) ([]domain.WatchHistoryEntry, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.history, nil
}

type fakeProfileCache struct {
	mu      sync.Mutex
	entries map[string]domain.ChannelProfile
}

func newFakeProfileCache() *fakeProfileCache {
	return &fakeProfileCache{entries: map[string]domain.ChannelProfile{}}
}

func cacheKey(username string, viewerID int64) string {
	return username + "/" + strconv.FormatInt(viewerID, 10)
}

func (c *fakeProfileCache) Get(_ context.Context, username string, viewerID int64) (*domain.ChannelProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	profile, ok := c.entries[cacheKey(username, viewerID)]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (c *fakeProfileCache) Set(_ context.Context, username string, viewerID int64, profile domain.ChannelProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(username, viewerID)] = profile
	return nil
}

func (c *fakeProfileCache) Invalidate(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, username+"/") {
			delete(c.entries, key)
		}
	}
	return nil
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, localPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, localPath)
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example.com/media/" + path.Base(localPath), nil
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}
