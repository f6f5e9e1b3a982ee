package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/lerpz/lerpz-auth/pkg/logger"
)

type AppConfig struct {
	ServiceName string
	Version     string

	Port        string
	DatabaseURL string
	BaseURL     string

	OidcConfig   OpenidConfiguration
	LoggerConfig logger.LoggerConfig
	RedisConfig  RedisConfig
	KafkaConfig  KafkaConfig
	EntraConfig  EntraConfig
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// EntraConfig identifies the single Microsoft Entra tenant whose tokens
// this service accepts.
type EntraConfig struct {
	TenantID string
	ClientID string
}

type OpenidConfiguration struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
}

func NewConfigManager() *AppConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	cfg := &AppConfig{
		ServiceName: os.Getenv("SERVICE_NAME"),
		Version:     os.Getenv("VERSION"),
		Port:        port,
		BaseURL:     os.Getenv("BASE_URL"),
		DatabaseURL: os.Getenv("MONGO_URI"),
		LoggerConfig: logger.LoggerConfig{
			Summary: logger.LogOutputConfig{Path: "./logs/summary/", Console: true, File: true},
			Detail:  logger.LogOutputConfig{Path: "./logs/detail/", Console: true, File: true},
		},
		EntraConfig: EntraConfig{
			TenantID: os.Getenv("ENTRA_TENANT_ID"),
			ClientID: os.Getenv("ENTRA_CLIENT_ID"),
		},
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisConfig = RedisConfig{
			Addr:     host,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		}
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_AUDIT_TOPIC")
		if topic == "" {
			topic = "auth.audit"
		}
		cfg.KafkaConfig = KafkaConfig{
			Brokers:    strings.Split(brokers, ","),
			AuditTopic: topic,
		}
	}

	return cfg
}

func (cm *AppConfig) LoadDefaults() error {
	if cm.BaseURL == "" {
		cm.BaseURL = "http://localhost:" + cm.Port
	}

	defaults := OpenidConfiguration{
		Issuer:                 cm.BaseURL,
		AuthorizationEndpoint:  cm.BaseURL + "/oauth/authorize",
		TokenEndpoint:          cm.BaseURL + "/oauth/token",
		UserinfoEndpoint:       cm.BaseURL + "/userinfo",
		JwksURI:                cm.BaseURL + "/.well-known/jwks.json",
		ResponseTypesSupported: []string{"code"},
		SubjectTypesSupported:  []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{
			"RS256",
		},
		ScopesSupported: []string{
			"openid",
			"profile",
			"email",
		},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_post",
			"none",
		},
		CodeChallengeMethodsSupported: []string{
			"plain",
			"S256",
		},
		GrantTypesSupported: []string{
			"authorization_code",
			"refresh_token",
			"client_credentials",
		},
	}

	if cm.OidcConfig.Issuer == "" {
		cm.OidcConfig.Issuer = defaults.Issuer
	}
	if cm.OidcConfig.AuthorizationEndpoint == "" {
		cm.OidcConfig.AuthorizationEndpoint = defaults.AuthorizationEndpoint
	}
	if cm.OidcConfig.TokenEndpoint == "" {
		cm.OidcConfig.TokenEndpoint = defaults.TokenEndpoint
	}
	if cm.OidcConfig.UserinfoEndpoint == "" {
		cm.OidcConfig.UserinfoEndpoint = defaults.UserinfoEndpoint
	}
	if cm.OidcConfig.JwksURI == "" {
		cm.OidcConfig.JwksURI = defaults.JwksURI
	}
	if len(cm.OidcConfig.ResponseTypesSupported) == 0 {
		cm.OidcConfig.ResponseTypesSupported = defaults.ResponseTypesSupported
	}
	if len(cm.OidcConfig.SubjectTypesSupported) == 0 {
		cm.OidcConfig.SubjectTypesSupported = defaults.SubjectTypesSupported
	}
	if len(cm.OidcConfig.IDTokenSigningAlgValuesSupported) == 0 {
		cm.OidcConfig.IDTokenSigningAlgValuesSupported = defaults.IDTokenSigningAlgValuesSupported
	}
	if len(cm.OidcConfig.ScopesSupported) == 0 {
		cm.OidcConfig.ScopesSupported = defaults.ScopesSupported
	}
	if len(cm.OidcConfig.TokenEndpointAuthMethodsSupported) == 0 {
		cm.OidcConfig.TokenEndpointAuthMethodsSupported = defaults.TokenEndpointAuthMethodsSupported
	}
	if len(cm.OidcConfig.CodeChallengeMethodsSupported) == 0 {
		cm.OidcConfig.CodeChallengeMethodsSupported = defaults.CodeChallengeMethodsSupported
	}
	if len(cm.OidcConfig.GrantTypesSupported) == 0 {
		cm.OidcConfig.GrantTypesSupported = defaults.GrantTypesSupported
	}

	return nil
}

func (o *OpenidConfiguration) ValidateGrantTypesSupported(grantType string) bool {
	for _, g := range o.GrantTypesSupported {
		if g == grantType {
			return true
		}
	}
	return false
}

func (o *OpenidConfiguration) ValidateCodeChallengeMethod(method string) bool {
	for _, m := range o.CodeChallengeMethodsSupported {
		if m == method {
			return true
		}
	}
	return false
}
