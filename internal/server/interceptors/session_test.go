package interceptors

import (
	"context"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/security"
	"pawplanner/backend/internal/session/domain"
	"pawplanner/backend/internal/session/repository"
	userdomain "pawplanner/backend/internal/user/domain"
)

const cookieName = "pp_session"

// headerStream captures headers set with grpc.SetHeader.
type headerStream struct {
	grpc.ServerTransportStream
	header metadata.MD
}

func (s *headerStream) Method() string { return "/pawplanner.session.v1.SessionService/ListSessions" }

func (s *headerStream) SetHeader(md metadata.MD) error {
	s.header = metadata.Join(s.header, md)
	return nil
}

type sessionFixture struct {
	now    time.Time
	guard  *guard.Guard
	token  string
	cookie guard.CookieConfig
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	codec, err := security.NewTestTokenCodec(clock)
	if err != nil {
		t.Fatal(err)
	}
	store := repository.NewMemoryRepository()
	user := &userdomain.User{ID: "user-1", OrgID: "org-1", Role: userdomain.RoleMember, Email: "ada@example.com"}
	store.PutUser(user)
	sess := &domain.Session{ID: "sess00000000000000000001", UserID: user.ID, ExpiresAt: f.now.Add(24 * time.Hour)}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	f.token, err = codec.Sign(security.SessionPayload{SessionID: sess.ID, User: security.SnapshotOf(user)})
	if err != nil {
		t.Fatal(err)
	}
	f.guard = guard.New(codec, store, guard.Config{CookieName: cookieName}, guard.WithClock(clock))
	f.cookie = guard.CookieConfig{Name: cookieName, MaxAge: 24 * time.Hour}
	return f
}

func (f *sessionFixture) call(t *testing.T, method string, md metadata.MD, handler grpc.UnaryHandler) (*headerStream, error) {
	t.Helper()
	stream := &headerStream{}
	ctx := metadata.NewIncomingContext(context.Background(), md)
	ctx = grpc.NewContextWithServerTransportStream(ctx, stream)
	interceptor := SessionUnary(f.guard, f.cookie, guard.EdgeHeaders{}, map[string]bool{"/grpc.health.v1.Health/Check": true})
	_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: method}, handler)
	return stream, err
}

func TestSessionUnary_MissingCookie(t *testing.T) {
	f := newSessionFixture(t)
	called := false
	_, err := f.call(t, "/pawplanner.session.v1.SessionService/ListSessions", metadata.MD{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}
	if called {
		t.Error("handler must not run")
	}
}

func TestSessionUnary_ValidCookieSetsIdentity(t *testing.T) {
	f := newSessionFixture(t)
	md := metadata.Pairs("cookie", "theme=dark; "+cookieName+"="+f.token)
	var got *guard.Identity
	stream, err := f.call(t, "/pawplanner.session.v1.SessionService/ListSessions", md, func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = guard.IdentityFrom(ctx)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if got == nil || got.UserID() != "user-1" {
		t.Fatalf("identity = %+v", got)
	}
	if len(stream.header.Get("set-cookie")) != 0 {
		t.Error("fast path must not set a cookie")
	}
}

func TestSessionUnary_SlowPathSetsCookieHeader(t *testing.T) {
	f := newSessionFixture(t)
	md := metadata.Pairs("cookie", cookieName+"="+f.token)
	f.now = f.now.Add(time.Minute)

	stream, err := f.call(t, "/pawplanner.session.v1.SessionService/ListSessions", md, okUnary)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	vals := stream.header.Get("set-cookie")
	if len(vals) != 1 || !strings.HasPrefix(vals[0], cookieName+"=") || !strings.Contains(vals[0], "HttpOnly") {
		t.Errorf("set-cookie = %v", vals)
	}
}

func TestSessionUnary_InvalidCookieClears(t *testing.T) {
	f := newSessionFixture(t)
	md := metadata.Pairs("cookie", cookieName+"=garbage")

	stream, err := f.call(t, "/pawplanner.session.v1.SessionService/SignOut", md, okUnary)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v", status.Code(err))
	}
	vals := stream.header.Get("set-cookie")
	if len(vals) != 1 || !strings.Contains(vals[0], "Max-Age=0") {
		t.Errorf("set-cookie = %v, want a clearing cookie", vals)
	}
}

func TestSessionUnary_PublicMethod(t *testing.T) {
	f := newSessionFixture(t)
	if _, err := f.call(t, "/grpc.health.v1.Health/Check", metadata.MD{}, okUnary); err != nil {
		t.Fatalf("public method: %v", err)
	}
}

func TestMetadataRequest_Geo(t *testing.T) {
	md := metadata.Pairs("x-vercel-ip-city", "Z%C3%BCrich", "x-vercel-ip-country", "CH", "user-agent", "grpc-go/1.78")
	r := &metadataRequest{ctx: context.Background(), md: md, edge: guard.EdgeHeaders{City: "X-Vercel-IP-City", Country: "X-Vercel-IP-Country"}}
	if g := r.Geo(); g.City != "Zürich" || g.Country != "CH" {
		t.Errorf("Geo = %+v", g)
	}
	if r.Header("User-Agent") != "grpc-go/1.78" {
		t.Errorf("User-Agent = %q", r.Header("User-Agent"))
	}
}
