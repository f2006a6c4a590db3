package host

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

func (l *Local) LookupUser(name string) (*User, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, err
	}
	return fromOSUser(u)
}

func fromOSUser(u *user.User) (*User, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("user %s: uid %q: %w", u.Username, u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("user %s: gid %q: %w", u.Username, u.Gid, err)
	}
	return &User{Name: u.Username, Home: u.HomeDir, UID: uid, GID: gid}, nil
}

// InvokingUserName picks the account Open WebUI runs as: the configured one,
// else the user who ran sudo, else the current user.
func InvokingUserName(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if s := os.Getenv("SUDO_USER"); s != "" {
		return s, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("determining current user: %w", err)
	}
	return u.Username, nil
}
