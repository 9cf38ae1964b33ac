package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/itrek/trekd/state"
	"github.com/itrek/trekd/types/user"
)

// Hiker is the API representation of an authenticated, active user.
// Route, social and profile operations are its methods, and act with its permissions.
type Hiker struct {
	app    *App
	User   *user.Record
	Token  string
	logger *slog.Logger
}

func (a *App) newHiker(rec *user.Record, token string) *Hiker {
	return &Hiker{
		app:    a,
		User:   rec,
		Token:  token,
		logger: slog.With("hiker", rec.Username),
	}
}

// Authenticate resolves an auth token to its Hiker.
// Unknown tokens and inactive users are ErrUnauthorized.
func (a *App) Authenticate(token string) (*Hiker, error) {
	id, err := a.Store.TokenUser(token)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
		}
		return nil, err
	}
	rec, err := a.Store.GetUser(id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
		}
		return nil, err
	}
	if !rec.Active {
		return nil, fmt.Errorf("%w: user inactive", ErrUnauthorized)
	}
	return a.newHiker(rec, token), nil
}

func (h *Hiker) ID() uint64 {
	return h.User.ID
}
