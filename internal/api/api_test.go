package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/chat"
	"github.com/parley-chat/parley-server/internal/config"
	"github.com/parley-chat/parley-server/internal/invite"
	"github.com/parley-chat/parley-server/internal/message"
	"github.com/parley-chat/parley-server/internal/user"
	"github.com/parley-chat/parley-server/internal/wire"
)

// testTimeout extends the default app.Test() deadline so that argon2 hashing under the race detector does not trigger
// spurious failures.
const testTimeout = 15000 // milliseconds

// testConfig returns a config with deliberately cheap argon2 parameters to keep handler tests fast.
func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey:      "0123456789abcdef0123456789abcdef",
		SessionTTL:        time.Hour,
		Argon2Memory:      1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		Argon2SaltLength:  16,
		Argon2KeyLength:   32,
		MaxMessageLength:  2000,
	}
}

// --- fakes ---

// fakeUserRepo implements user.Repository in memory.
type fakeUserRepo struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]user.Credentials
	byName map[string]uuid.UUID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:   make(map[uuid.UUID]user.Credentials),
		byName: make(map[string]uuid.UUID),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, params user.CreateParams) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[params.Username]; ok {
		return uuid.Nil, user.ErrAlreadyExists
	}
	id := uuid.New()
	r.byID[id] = user.Credentials{
		User: user.User{
			ID:        id,
			Username:  params.Username,
			Email:     params.Email,
			CreatedAt: time.Now().UTC(),
		},
		PasswordHash: params.PasswordHash,
	}
	r.byName[params.Username] = id
	return id, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := creds.User
	return &u, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*user.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[username]
	if !ok {
		return nil, user.ErrNotFound
	}
	creds := r.byID[id]
	return &creds, nil
}

func (r *fakeUserRepo) ResolveID(_ context.Context, username string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[username]
	if !ok {
		return uuid.Nil, user.ErrNotFound
	}
	return id, nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	creds.PasswordHash = hash
	r.byID[userID] = creds
	return nil
}

// fakeSessionRepo implements auth.SessionRepository in memory.
type sessionRow struct {
	userID    uuid.UUID
	expiresAt time.Time
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]sessionRow
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]sessionRow)}
}

func (r *fakeSessionRepo) Create(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = sessionRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *fakeSessionRepo) UserForToken(_ context.Context, token string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.sessions[token]
	if !ok || !row.expiresAt.After(time.Now()) {
		return uuid.Nil, auth.ErrUnauthorized
	}
	return row.userID, nil
}

func (r *fakeSessionRepo) PurgeExpired(context.Context) (int64, error) { return 0, nil }

// fakeChatRepo implements chat.Repository in memory.
type fakeChatRepo struct {
	mu      sync.Mutex
	chats   map[uuid.UUID]chat.Chat
	members map[uuid.UUID]map[uuid.UUID]chat.MemberStatus
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats:   make(map[uuid.UUID]chat.Chat),
		members: make(map[uuid.UUID]map[uuid.UUID]chat.MemberStatus),
	}
}

func (r *fakeChatRepo) Create(_ context.Context, name string, creatorID uuid.UUID) (*chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := chat.Chat{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	r.chats[c.ID] = c
	r.members[c.ID] = map[uuid.UUID]chat.MemberStatus{creatorID: chat.StatusAccepted}
	return &c, nil
}

func (r *fakeChatRepo) GetByID(_ context.Context, id uuid.UUID) (*chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return &c, nil
}

func (r *fakeChatRepo) IsAcceptedMember(_ context.Context, chatID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[chatID][userID] == chat.StatusAccepted, nil
}

// noopInviteSender satisfies chat.InviteSender and records invitees.
type noopInviteSender struct {
	mu       sync.Mutex
	invitees []string
}

func (s *noopInviteSender) Send(_ context.Context, _, _ uuid.UUID, inviteeUsername string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitees = append(s.invitees, inviteeUsername)
	return uuid.New(), nil
}

// fakeInviteRepo implements invite.Repository in memory.
type fakeInviteRepo struct {
	mu      sync.Mutex
	invites map[uuid.UUID]invite.Invite
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{invites: make(map[uuid.UUID]invite.Invite)}
}

func (r *fakeInviteRepo) CreatePending(_ context.Context, chatID, inviterID, inviteeID uuid.UUID) (*invite.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	inv := invite.Invite{
		ID:        uuid.New(),
		ChatID:    chatID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    invite.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.invites[inv.ID] = inv
	return &inv, nil
}

func (r *fakeInviteRepo) Respond(_ context.Context, inviteID, userID uuid.UUID, accept bool) (*invite.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[inviteID]
	if !ok || inv.InviteeID != userID || inv.Status != invite.StatusPending {
		return nil, invite.ErrNotFound
	}
	inv.Status = invite.StatusRejected
	if accept {
		inv.Status = invite.StatusAccepted
	}
	inv.UpdatedAt = time.Now().UTC()
	r.invites[inviteID] = inv
	return &inv, nil
}

// fakeNotifier satisfies invite.Notifier.
type fakeNotifier struct {
	mu     sync.Mutex
	direct []wire.Frame
	seeded []uuid.UUID
}

func (n *fakeNotifier) SendDirect(_ uuid.UUID, frame wire.Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct = append(n.direct, frame)
	return nil
}

func (n *fakeNotifier) BroadcastToRoom(_, _ uuid.UUID, _ wire.Frame) {}

func (n *fakeNotifier) SeedRoom(chatID, _ uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seeded = append(n.seeded, chatID)
}

// fakeMessageRepo implements message.Repository in memory; membership is a plain allow set.
type fakeMessageRepo struct {
	mu       sync.Mutex
	members  map[uuid.UUID]map[uuid.UUID]bool
	messages []message.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{members: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (r *fakeMessageRepo) allow(chatID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[chatID] == nil {
		r.members[chatID] = make(map[uuid.UUID]bool)
	}
	r.members[chatID][userID] = true
}

func (r *fakeMessageRepo) Insert(_ context.Context, chatID, senderID uuid.UUID, content string) (*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[chatID][senderID] {
		return nil, message.ErrNotMember
	}
	m := message.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	r.messages = append(r.messages, m)
	return &m, nil
}

func (r *fakeMessageRepo) ListByChat(_ context.Context, chatID uuid.UUID) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []message.Message{}
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

// noopBroadcaster satisfies message.Broadcaster.
type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToRoom(_, _ uuid.UUID, _ wire.Frame) {}

// --- request / response helpers ---

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return b
}

func parseError(t *testing.T, body []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal error response %q: %v", string(body), err)
	}
	return env
}

func getReq(url string) *http.Request {
	return httptest.NewRequest(http.MethodGet, url, nil)
}

func jsonReq(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// doReq sends a request through app.Test with the extended test timeout.
func doReq(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, testTimeout)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

// asUser returns middleware that injects an authenticated user, standing in for the real auth middleware.
func asUser(userID uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	}
}
