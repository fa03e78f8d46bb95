package salesforce

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type SecretsManagerMock struct {
	mock.Mock
}

func (m *SecretsManagerMock) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, params)
	r, _ := args.Get(0).(*secretsmanager.GetSecretValueOutput)
	return r, args.Error(1)
}

func newSecretsManagerMock(secret string, err error) *SecretsManagerMock {
	m := new(SecretsManagerMock)
	m.On("GetSecretValue", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return aws.ToString(in.SecretId) == "sf/creds"
	})).Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(secret)}, err)
	return m
}

func newRsaKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, pemKey
}

func TestPasswordCredentials_Values(t *testing.T) {
	tests := []struct {
		name    string
		creds   PasswordCredentials
		want    url.Values
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "all fields set  password grant returned",
			creds: PasswordCredentials{
				Username:     "user@example.com",
				Password:     "secret+token",
				ClientId:     "clientId",
				ClientSecret: "clientSecret",
			},
			want: url.Values{
				"grant_type":    {"password"},
				"username":      {"user@example.com"},
				"password":      {"secret+token"},
				"client_id":     {"clientId"},
				"client_secret": {"clientSecret"},
			},
			wantErr: assert.NoError,
		},
		{
			name: "password missing  error returned",
			creds: PasswordCredentials{
				Username:     "user@example.com",
				ClientId:     "clientId",
				ClientSecret: "clientSecret",
			},
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.creds.Values()

			if !tt.wantErr(t, err) {
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJwtBearerCredentials_Values(t *testing.T) {
	key, pemKey := newRsaKey(t)
	creds := JwtBearerCredentials{
		ClientId:   "clientId",
		Username:   "user@example.com",
		Audience:   "https://login.salesforce.com",
		PrivateKey: pemKey,
	}

	got, err := creds.Values()
	require.NoError(t, err)
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", got.Get("grant_type"))

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(got.Get("assertion"), claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "clientId", claims["iss"])
	assert.Equal(t, "user@example.com", claims["sub"])
	assert.Equal(t, "https://login.salesforce.com", claims["aud"])
	assert.NotEmpty(t, claims["jti"])

	// every call signs a new assertion
	again, err := creds.Values()
	require.NoError(t, err)
	assert.NotEqual(t, got.Get("assertion"), again.Get("assertion"))
}

func TestJwtBearerCredentials_Values_InvalidKey(t *testing.T) {
	_, err := JwtBearerCredentials{
		ClientId:   "clientId",
		Username:   "user@example.com",
		Audience:   "https://login.salesforce.com",
		PrivateKey: []byte("not a key"),
	}.Values()

	assert.Error(t, err)
}

func TestCredentialsFromSecretsManager(t *testing.T) {
	_, pemKey := newRsaKey(t)
	pemB64 := base64.StdEncoding.EncodeToString(pemKey)

	tests := []struct {
		name    string
		sm      SecretsManagerClient
		key     string
		want    Grant
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "password secret  PasswordCredentials returned",
			sm:   newSecretsManagerMock(`{"username":"u","password":"p","clientId":"id","clientSecret":"s"}`, nil),
			key:  "sf/creds",
			want: PasswordCredentials{
				Username:     "u",
				Password:     "p",
				ClientId:     "id",
				ClientSecret: "s",
			},
			wantErr: assert.NoError,
		},
		{
			name: "private key secret  JwtBearerCredentials returned",
			sm:   newSecretsManagerMock(`{"username":"u","clientId":"id","audience":"https://test.salesforce.com","privateKeyBase64":"`+pemB64+`"}`, nil),
			key:  "sf/creds",
			want: JwtBearerCredentials{
				ClientId:   "id",
				Username:   "u",
				Audience:   "https://test.salesforce.com",
				PrivateKey: pemKey,
			},
			wantErr: assert.NoError,
		},
		{
			name:    "secrets manager returns error  error returned",
			sm:      newSecretsManagerMock("", errors.New("access denied")),
			key:     "sf/creds",
			wantErr: assert.Error,
		},
		{
			name:    "secret not json  error returned",
			sm:      newSecretsManagerMock(`username=u`, nil),
			key:     "sf/creds",
			wantErr: assert.Error,
		},
		{
			name:    "private key not base64  error returned",
			sm:      newSecretsManagerMock(`{"username":"u","clientId":"id","audience":"a","privateKeyBase64":"%%%"}`, nil),
			key:     "sf/creds",
			wantErr: assert.Error,
		},
		{
			name:    "client secret missing  error returned",
			sm:      newSecretsManagerMock(`{"username":"u","password":"p","clientId":"id"}`, nil),
			key:     "sf/creds",
			wantErr: assert.Error,
		},
		{
			name:    "key not set  error returned",
			sm:      new(SecretsManagerMock),
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CredentialsFromSecretsManager(context.Background(), tt.sm, tt.key)

			if !tt.wantErr(t, err) {
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
