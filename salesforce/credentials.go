package salesforce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const assertionTtl = 3 * time.Minute

const (
	passwordGrantType  = "password"
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Grant produces the form parameters sent to the salesforce token endpoint
type Grant interface {
	Values() (url.Values, error)
}

// PasswordCredentials username-password oauth flow, the password should already
// have the security token appended where the org requires one
type PasswordCredentials struct {
	Username     string `validate:"required"`
	Password     string `validate:"required"`
	ClientId     string `validate:"required"`
	ClientSecret string `validate:"required"`
}

func (c PasswordCredentials) Values() (url.Values, error) {
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	data := url.Values{}
	data.Add("grant_type", passwordGrantType)
	data.Add("username", c.Username)
	data.Add("password", c.Password)
	data.Add("client_id", c.ClientId)
	data.Add("client_secret", c.ClientSecret)
	return data, nil
}

// JwtBearerCredentials signs a fresh RS256 assertion for every authentication
// - Audience is the login host, e.g. https://login.salesforce.com
// - PrivateKey is PEM encoded
type JwtBearerCredentials struct {
	ClientId   string `validate:"required"`
	Username   string `validate:"required"`
	Audience   string `validate:"required"`
	PrivateKey []byte `validate:"required"`
}

func (c JwtBearerCredentials) Values() (url.Values, error) {
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	tok, err := c.generateJwt()
	if err != nil {
		return nil, err
	}
	data := url.Values{}
	data.Add("grant_type", jwtBearerGrantType)
	data.Add("assertion", tok)
	return data, nil
}

func (c JwtBearerCredentials) generateJwt() (string, error) {
	j := jwt.New(jwt.GetSigningMethod("RS256"))
	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("error parsing private key %w", err)
	}
	j.Claims = struct {
		jwt.RegisteredClaims
		Aud string `json:"aud,omitempty"`
	}{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.ClientId,
			Subject:   c.Username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(assertionTtl)),
			ID:        uuid.New().String(),
		},
		Aud: c.Audience,
	}
	tok, err := j.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("error generating salesforce assertion %w", err)
	}
	return tok, nil
}

type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretCfg struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	ClientId         string `json:"clientId"`
	ClientSecret     string `json:"clientSecret"`
	Audience         string `json:"audience"`
	PrivateKeyBase64 string `json:"privateKeyBase64"`
}

// CredentialsFromSecretsManager loads a Grant from a json secret
// - when privateKeyBase64 is set a JwtBearerCredentials is returned, otherwise PasswordCredentials
// - the returned grant is validated
func CredentialsFromSecretsManager(ctx context.Context, sm SecretsManagerClient, key string) (Grant, error) {
	if sm == nil || key == "" {
		return nil, fmt.Errorf("secrets manager client and key need to be provided")
	}
	cfgRaw, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to fetch credentials from secrets manager: %w", err)
	}
	if cfgRaw.SecretString == nil {
		return nil, fmt.Errorf("secret %v has no string value", key)
	}

	cfg := secretCfg{}
	if err := json.Unmarshal([]byte(aws.ToString(cfgRaw.SecretString)), &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse credentials from secrets manager: %w", err)
	}

	var g Grant
	if cfg.PrivateKeyBase64 != "" {
		pk, err := base64.StdEncoding.DecodeString(cfg.PrivateKeyBase64)
		if err != nil {
			return nil, fmt.Errorf("unable to decode private key: %w", err)
		}
		g = JwtBearerCredentials{
			ClientId:   cfg.ClientId,
			Username:   cfg.Username,
			Audience:   cfg.Audience,
			PrivateKey: pk,
		}
	} else {
		g = PasswordCredentials{
			Username:     cfg.Username,
			Password:     cfg.Password,
			ClientId:     cfg.ClientId,
			ClientSecret: cfg.ClientSecret,
		}
	}
	if err := validateStruct(g); err != nil {
		return nil, fmt.Errorf("invalid credentials in secret %v: %w", key, err)
	}
	return g, nil
}

var validate = validator.New()

func validateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}
