package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lendkeeper/internal/client/client"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
)

const (
	usernamePrefix    = "user_"
	usernameTextChars = 8
)

// DefaultUsername derives the username a new account is registered with
// from the first characters of the principal's text form.
func DefaultUsername(p principal.Principal) string {
	text := p.Text()
	if len(text) > usernameTextChars {
		text = text[:usernameTextChars]
	}
	return usernamePrefix + text
}

// ensureRegistered makes sure the lending pool has a record for p and
// returns it. Only a failure to ask whether the caller is known is an
// error; every later failure leaves the record nil.
func ensureRegistered(ctx context.Context, svc client.Client, p principal.Principal, log logging.Logger) (*client.UserRecord, error) {
	known, err := svc.IsAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}

	if known {
		return fetchUser(ctx, svc, p, log), nil
	}

	username := DefaultUsername(p)
	res, err := svc.RegisterUser(ctx, p, username)
	if err != nil {
		log.Warn(ctx, "register user failed", "username", username, "error", err)
		return nil, nil
	}

	if rec, ok := res.Value(); ok {
		log.Info(ctx, "registered user", "username", username)
		return &rec, nil
	}

	rerr := client.RegistrationError(res.Message())
	if errors.Is(rerr, client.ErrUserAlreadyExists) {
		log.Debug(ctx, "user registered concurrently, fetching record", "error", rerr)
		return fetchUser(ctx, svc, p, log), nil
	}
	log.Warn(ctx, "register user rejected", "username", username, "error", rerr)
	return nil, nil
}

func fetchUser(ctx context.Context, svc client.Client, p principal.Principal, log logging.Logger) *client.UserRecord {
	res, err := svc.GetUserInfo(ctx, p)
	if err != nil {
		log.Warn(ctx, "get user info failed", "error", err)
		return nil
	}
	rec, ok := res.Value()
	if !ok {
		log.Warn(ctx, "get user info rejected", "reason", res.Message())
		return nil
	}
	return &rec
}
