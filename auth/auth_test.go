package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"talkify/errors"
)

const testSecret = "unit_test_secret_key_not_for_production"

func TestTokenManager_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager(testSecret, time.Hour)

	token, err := manager.Generate("user-42", "maria")
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("maria", claims.Username)
	req.Equal("talkify", claims.Issuer)
}

func TestTokenManager_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager(testSecret, -time.Minute)

	token, err := manager.Generate("user-42", "maria")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestTokenManager_Rejects_Foreign_Signature(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager(testSecret, time.Hour)
	other := NewTokenManager("a_completely_different_secret_key", time.Hour)

	token, err := other.Generate("user-42", "maria")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestHashPassword_Roundtrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Sup3r$ecretPassw0rd!")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword("Sup3r$ecretPassw0rd!", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_Malformed_Hash(t *testing.T) {
	req := require.New(t)
	_, err := ComparePassword("whatever", "not-a-hash")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
	}{
		{
			name: "valid request",
			request: RegisterRequest{
				Username:          "maria",
				Email:             "maria@example.com",
				Password:          "Sup3r$ecretPassw0rd!",
				PreferredLanguage: "es",
			},
		},
		{
			name: "no email is allowed",
			request: RegisterRequest{
				Username: "maria",
				Password: "Sup3r$ecretPassw0rd!",
			},
		},
		{
			name:    "short username",
			request: RegisterRequest{Username: "ab", Password: "Sup3r$ecretPassw0rd!"},
			wantErr: true,
		},
		{
			name:    "short password",
			request: RegisterRequest{Username: "maria", Password: "Ab1$"},
			wantErr: true,
		},
		{
			name:    "no complexity",
			request: RegisterRequest{Username: "maria", Password: "alllowercaseletters"},
			wantErr: true,
		},
		{
			name:    "bad email",
			request: RegisterRequest{Username: "maria", Email: "nope", Password: "Sup3r$ecretPassw0rd!"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.request)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
