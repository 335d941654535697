package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikemainguy/video-conferencing-app/errors"
)

func Test_Parse_And_Verify_Accounts(t *testing.T) {
	req := require.New(t)
	hash, err := HashPassword("s3cret")
	req.NoError(err)

	accounts, err := ParseAccounts(fmt.Sprintf("alice:%s", hash))
	req.NoError(err)
	req.False(accounts.Empty())

	req.NoError(accounts.Verify("alice", "s3cret"))
	req.ErrorIs(accounts.Verify("alice", "wrong"), errors.ErrBadCredentials)
	req.ErrorIs(accounts.Verify("mallory", "s3cret"), errors.ErrUnknownAccount)
}

func Test_Parse_Accounts_Empty_String(t *testing.T) {
	req := require.New(t)
	accounts, err := ParseAccounts("")
	req.NoError(err)
	req.True(accounts.Empty())
}

func Test_Parse_Accounts_Rejects_Malformed_Entries(t *testing.T) {
	req := require.New(t)

	_, err := ParseAccounts("alice")
	req.Error(err)
	_, err = ParseAccounts("alice:plaintext-password")
	req.Error(err)
	_, err = ParseAccounts(":$argon2id$whatever")
	req.Error(err)
}
