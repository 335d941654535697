package auth

import (
	"fmt"
	"strings"

	"github.com/mikemainguy/video-conferencing-app/errors"
)

// Accounts is the local credential table guarding token issuance. It is
// read-only after construction.
type Accounts struct {
	hashes map[string]string
}

// ParseAccounts builds the table from a configuration string of
// comma-separated "username:encoded-argon2-hash" pairs.
func ParseAccounts(raw string) (*Accounts, error) {
	hashes := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		username, hash, found := strings.Cut(pair, ":")
		if !found || username == "" || !strings.HasPrefix(hash, "$argon2id$") {
			return nil, fmt.Errorf("malformed account entry %q", username)
		}
		hashes[username] = hash
	}
	return &Accounts{hashes: hashes}, nil
}

// Empty reports whether no accounts are configured, in which case the
// token endpoint runs open for local development.
func (a *Accounts) Empty() bool {
	return len(a.hashes) == 0
}

// Verify checks a username/password pair against the table.
func (a *Accounts) Verify(username, password string) error {
	hash, ok := a.hashes[username]
	if !ok {
		return errors.ErrUnknownAccount
	}
	match, err := ComparePassword(password, hash)
	if err != nil {
		return err
	}
	if !match {
		return errors.ErrBadCredentials
	}
	return nil
}
