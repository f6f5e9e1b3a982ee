package main

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lerpz/lerpz-auth/internal/client"
	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/internal/discover"
	"github.com/lerpz/lerpz-auth/internal/entra"
	"github.com/lerpz/lerpz-auth/internal/jwks"
	"github.com/lerpz/lerpz-auth/internal/oauth"
	"github.com/lerpz/lerpz-auth/internal/session"
	"github.com/lerpz/lerpz-auth/internal/token"
	"github.com/lerpz/lerpz-auth/internal/user"
	"github.com/lerpz/lerpz-auth/pkg/kafka"
	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
	"github.com/lerpz/lerpz-auth/pkg/pwd"
)

func main() {
	godotenv.Load()
	cfg := config.NewConfigManager()
	cfg.LoadDefaults()

	app := NewMicroservice(cfg)

	app.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			csLog := logger.NewLoggerWithConfig("lerpz-auth", "1.0.0", &cfg.LoggerConfig)
			csLog.StartTransaction(uuid.NewString(), "")
			r = r.WithContext(mlog.WithLogger(r.Context(), csLog))
			h.ServeHTTP(w, r)
		})
	})

	db, err := database.NewDatabase(cfg.DatabaseURL, "lerpz_auth")
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConfig(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redis.Close()

	audit := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.KafkaConfig.Brokers,
		Topic:   cfg.KafkaConfig.AuditTopic,
	})
	defer audit.Close()

	jwksRepository := jwks.NewSigningKeyRepository(db, redis)
	if err := jwksRepository.EnsureActiveKey(); err != nil {
		log.Fatalf("failed to prepare signing key: %v", err)
	}
	jwtService := jwks.NewJWTService(cfg, jwksRepository)

	sessionRepository := session.NewSessionRepository(redis)

	hasher := pwd.NewHasher()
	userRepository := user.NewUserRepository(db)
	userService := user.NewUserService(userRepository, hasher, audit)
	userHandler := user.NewUserHandler(userService, sessionRepository)

	app.GET("/login", userHandler.LoginPage)
	app.POST("/login", userHandler.Login)
	app.GET("/register", userHandler.RegisterPage)
	app.POST("/register", userHandler.Register)
	app.POST("/logout", userHandler.Logout)

	clientRepository := client.NewClientRepository(db)
	clientService := client.NewClientService(clientRepository)
	clientHandler := client.NewClientHandler(clientService)

	app.POST("/clients", clientHandler.Register)
	app.GET("/clients/{id}", clientHandler.Get)

	codeStore := oauth.NewCodeStore(redis)
	oauthService := oauth.NewOAuthService(cfg, clientRepository, codeStore)
	oauthHandler := oauth.NewOAuthHandler(oauthService, sessionRepository)

	app.GET("/oauth/authorize", oauthHandler.Authorize)
	app.GET("/problem", oauthHandler.Problem)

	refreshRepository := token.NewRefreshTokenRepository(db)
	tokenService := token.NewTokenService(cfg, clientRepository, codeStore, refreshRepository, jwtService, audit)
	tokenHandler := token.NewTokenHandler(tokenService)

	app.POST("/oauth/token", tokenHandler.Token)

	discoverHandler := discover.NewDiscoverHandler(cfg, jwtService)
	app.GET("/.well-known/openid-configuration", discoverHandler.OpenidConfiguration)
	app.GET("/.well-known/jwks.json", discoverHandler.JWKS)

	// Routes guarded by third-party Entra tokens.
	if cfg.EntraConfig.TenantID != "" {
		entraConfig := entra.NewConfig(cfg.EntraConfig)
		entraValidator := entra.NewValidator(entraConfig)

		app.Handle("GET /me", entraValidator.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))
			claims := entra.ClaimsFromContext(r.Context())
			res.ResponseJson(http.StatusOK, map[string]any{
				"sub":    claims.Sub(),
				"name":   claims.Name,
				"email":  claims.Email,
				"scopes": claims.Scopes(),
				"roles":  claims.Roles,
			})
		})))
	}

	app.Start()
}
