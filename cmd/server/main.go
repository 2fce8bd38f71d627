// server runs the PawPlanner backend: pages and RPC over HTTP, SessionService over gRPC.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	"pawplanner/backend/internal/audit"
	auditrepo "pawplanner/backend/internal/audit/repository"
	"pawplanner/backend/internal/config"
	"pawplanner/backend/internal/db"
	"pawplanner/backend/internal/devotp"
	devotphandler "pawplanner/backend/internal/devotp/handler"
	"pawplanner/backend/internal/guard"
	healthhandler "pawplanner/backend/internal/health/handler"
	identityhandler "pawplanner/backend/internal/identity/handler"
	identityservice "pawplanner/backend/internal/identity/service"
	"pawplanner/backend/internal/notify"
	coderepo "pawplanner/backend/internal/onetimecode/repository"
	"pawplanner/backend/internal/policy/engine"
	"pawplanner/backend/internal/security"
	"pawplanner/backend/internal/server"
	"pawplanner/backend/internal/server/interceptors"
	sessionhandler "pawplanner/backend/internal/session/handler"
	sessionrepo "pawplanner/backend/internal/session/repository"
	sessionservice "pawplanner/backend/internal/session/service"
	"pawplanner/backend/internal/telemetry"
	telemetryotel "pawplanner/backend/internal/telemetry/otel"
	"pawplanner/backend/internal/telemetry/producer"
	userrepo "pawplanner/backend/internal/user/repository"
)

const (
	serviceName      = "pawplanner-backend"
	shutdownTimeout  = 15 * time.Second
	healthInterval   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateSessionSecret(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	emitters := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Printf("telemetry: exporting auth events to kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	codec, err := security.NewTokenCodec([]byte(cfg.SessionSecret))
	if err != nil {
		log.Fatalf("session codec: %v", err)
	}
	defer codec.Close()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	codes := coderepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)

	authz, err := engine.NewOPAEvaluator(ctx, cfg.SuperOrgID)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	cookie := guard.CookieConfig{Name: guard.DefaultCookieName, Secure: cfg.IsProduction(), MaxAge: cfg.SessionTTL()}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	edge := guard.EdgeHeaders{City: cfg.GeoCityHeader, Country: cfg.GeoCountryHeader, TrustedProxies: proxies}
	g := guard.New(codec, sessions, guard.Config{
		CookieName:      cookie.Name,
		FreshnessWindow: cfg.FreshnessWindow(),
		StoreTimeout:    cfg.SessionStoreTimeout(),
	}, guard.WithEmitter(emitters))

	var sender notify.Sender = notify.LogSender{}
	if cfg.SMTPHost != "" {
		sender = notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	var devOTP http.Handler
	if cfg.OTPReturnToClient {
		store := devotp.NewMemoryStore()
		sender = devotp.NewOutbox(sender, store)
		devOTP = devotphandler.NewHandler(store)
		log.Println("server: OTP_RETURN_TO_CLIENT is on; sent codes are readable at /dev/otp")
	}

	httpAudit := audit.NewLogger(audits, audit.ClientIPFromContext)
	login := identityservice.NewLoginService(users, sessions, codes, codec, sender, identityservice.Config{
		AppBaseURL:       cfg.AppBaseURL,
		SessionTTL:       cfg.SessionTTL(),
		MagicLinkTTL:     cfg.MagicLinkTTL(),
		CodeTTL:          cfg.VerificationCodeTTL(),
		TestAccountEmail: cfg.TestAccountEmail,
	}, identityservice.WithAuditLogger(httpAudit), identityservice.WithEmitter(emitters))

	checks := healthhandler.NewHandler(conn, authz)

	handler := server.NewHTTPHandler(server.HTTPDeps{
		Guard:       g,
		Cookie:      cookie,
		Edge:        edge,
		SignInPath:  cfg.SignInPath,
		LandingPath: cfg.LandingPath,
		Identity: identityhandler.NewHandler(login, identityhandler.Config{
			Cookie:     cookie,
			Edge:       edge,
			SignInPath: cfg.SignInPath,
		}),
		Sessions: sessionhandler.NewHTTPHandler(
			sessionservice.NewService(sessions, users, authz,
				sessionservice.WithAuditLogger(httpAudit), sessionservice.WithEmitter(emitters)),
			cookie),
		Health: checks,
		DevOTP: devOTP,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go sessionrepo.NewSweeper("sessions", sessions, cfg.SessionSweepInterval()).Run(ctx)
	go sessionrepo.NewSweeper("one-time codes", codes, cfg.SessionSweepInterval()).Run(ctx)

	go func() {
		log.Printf("server: HTTP listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: http: %v", err)
		}
	}()

	var healthServer *health.Server
	stopGRPC := func() {}
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("server: grpc listen: %v", err)
		}
		healthServer = health.NewServer()
		// gRPC calls are audited by the interceptor, so this service instance has no audit logger.
		grpcSessions := sessionservice.NewService(sessions, users, authz, sessionservice.WithEmitter(emitters))
		s := server.NewGRPCServer(server.GRPCDeps{
			Guard:       g,
			Cookie:      cookie,
			Edge:        edge,
			Sessions:    sessionhandler.NewGRPCServer(grpcSessions, cookie),
			Health:      healthServer,
			AuditLogger: audit.NewLogger(audits, interceptors.ClientIPResolver(proxies)),
		})
		go checks.WatchGRPC(ctx, healthServer, healthInterval, "", sessionhandler.ServiceName)
		go func() {
			log.Printf("server: gRPC listening on %s", cfg.GRPCAddr)
			if err := s.Serve(lis); err != nil {
				log.Fatalf("server: grpc: %v", err)
			}
		}()
		stopGRPC = s.GracefulStop
	}

	<-ctx.Done()
	log.Println("server: shutting down...")
	if healthServer != nil {
		healthServer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: http shutdown: %v", err)
	}
	stopGRPC()
	if err := kafkaProducer.Close(); err != nil {
		log.Printf("telemetry: kafka close: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry: shutdown: %v", err)
	}
	log.Println("server: stopped")
}
