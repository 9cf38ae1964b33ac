package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/mail"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/state"
	"github.com/itrek/trekd/types/route"
	"github.com/itrek/trekd/types/user"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=30"`
	LastName  string `json:"last_name" validate:"max=30"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
}

type ProfileRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=150"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=30"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=30"`
	Bio       *string `json:"bio,omitempty"`
	Image     *string `json:"image,omitempty"`
}

// Session is what a successful login or email confirmation returns.
type Session struct {
	*user.User
	Token string `json:"token"`
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func checkUsername(username string) error {
	if strings.ContainsAny(username, " \t\n/") {
		return invalidf("username may not contain spaces or slashes")
	}
	return nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Register creates an inactive user and mails them a confirmation link.
func (a *App) Register(req *RegisterRequest) (*user.User, error) {
	if err := common.Validator().Struct(req); err != nil {
		return nil, invalidf("%v", err)
	}
	if err := checkUsername(strings.TrimSpace(req.Username)); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	rec := &user.Record{
		User: user.User{
			Username:  strings.TrimSpace(req.Username),
			Email:     strings.TrimSpace(req.Email),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Bio:       req.Bio,
			JoinedAt:  a.now(),
		},
		PasswordHash: hash,
	}
	// Uniqueness is checked before the image is stored.
	if _, err := a.Store.UserByUsername(rec.Username); err == nil {
		return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, rec.Username)
	}
	if _, err := a.Store.UserByEmail(rec.Email); err == nil {
		return nil, fmt.Errorf("%w: email %q is in use", ErrConflict, rec.Email)
	}
	if req.Image != "" {
		ref, err := a.storeImage(context.Background(), "profiles", req.Image)
		if err != nil {
			return nil, err
		}
		rec.ImageURL = ref
	}
	if err := a.Store.PutUser(rec); err != nil {
		if req.Image != "" && rec.ImageURL != req.Image {
			a.dropImages([]string{rec.ImageURL})
		}
		return nil, storeErr(err, "user", rec.Username)
	}
	a.logger.Info("Registered user", "user", rec.ID, "username", rec.Username)

	token, err := a.signer.Sign(audConfirmEmail, rec.Email, params.ConfirmEmailMaxAge)
	if err != nil {
		return nil, err
	}
	a.sendMail(mail.KindConfirmEmail, rec, map[string]any{
		"ConfirmURL": "/api/users/confirm-email/" + token,
	})
	return &rec.User, nil
}

// ConfirmEmail activates the user named by a confirmation token, sends the welcome mail
// and logs them in.
func (a *App) ConfirmEmail(token string) (*Session, error) {
	email, err := a.signer.Unsign(audConfirmEmail, token)
	if errors.Is(err, ErrSignatureExpired) {
		return nil, invalidf("confirmation link expired, ask for a new one")
	} else if err != nil {
		return nil, invalidf("invalid confirmation link")
	}
	rec, err := a.Store.UserByEmail(email)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, invalidf("invalid confirmation link")
		}
		return nil, err
	}
	if rec.Active {
		return nil, invalidf("email already confirmed")
	}
	rec.Active = true
	if err := a.Store.PutUser(rec); err != nil {
		return nil, err
	}
	a.sendMail(mail.KindWelcome, rec, nil)
	return a.session(rec)
}

// session returns the user's existing token, or a new one.
func (a *App) session(rec *user.Record) (*Session, error) {
	token, err := a.Store.UserToken(rec.ID)
	if errors.Is(err, state.ErrNotFound) {
		token = newToken()
		err = a.Store.PutToken(token, rec.ID)
	}
	if err != nil {
		return nil, err
	}
	return &Session{User: &rec.User, Token: token}, nil
}

// Login checks a username (or email) and password.
func (a *App) Login(username, password string) (*Session, error) {
	rec, err := a.Store.UserByUsername(username)
	if errors.Is(err, state.ErrNotFound) {
		rec, err = a.Store.UserByEmail(username)
	}
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if !rec.Active {
		return nil, fmt.Errorf("%w: confirm your email first", ErrUnauthorized)
	}
	a.logger.Info("Login", "user", rec.ID)
	return a.session(rec)
}

// Logout forgets the hiker's token.
func (h *Hiker) Logout() error {
	return h.app.Store.DeleteToken(h.Token)
}

// UpdateProfile changes the non-nil fields of the hiker's profile.
func (h *Hiker) UpdateProfile(req *ProfileRequest) (*user.User, error) {
	if err := common.Validator().Struct(req); err != nil {
		return nil, invalidf("%v", err)
	}
	rec := *h.User
	if !blank(req.Username) {
		rec.Username = strings.TrimSpace(*req.Username)
		if err := checkUsername(rec.Username); err != nil {
			return nil, err
		}
	}
	if !blank(req.Email) {
		rec.Email = strings.TrimSpace(*req.Email)
	}
	if req.FirstName != nil {
		rec.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		rec.LastName = *req.LastName
	}
	if req.Bio != nil {
		rec.Bio = *req.Bio
	}
	if req.Image != nil {
		if *req.Image == "" {
			rec.ImageURL = ""
		} else {
			ref, err := h.app.storeImage(context.Background(), "profiles", *req.Image)
			if err != nil {
				return nil, err
			}
			rec.ImageURL = ref
		}
	}
	if err := h.app.Store.PutUser(&rec); err != nil {
		if req.Image != nil && rec.ImageURL != *req.Image && rec.ImageURL != h.User.ImageURL {
			h.app.dropImages([]string{rec.ImageURL})
		}
		return nil, storeErr(err, "user", rec.ID)
	}
	h.User = &rec
	return &rec.User, nil
}

// ChangePassword replaces the password after checking the current one.
func (h *Hiker) ChangePassword(current, next string) error {
	if bcrypt.CompareHashAndPassword(h.User.PasswordHash, []byte(current)) != nil {
		return invalidf("current password is wrong")
	}
	if len(next) < 8 || len(next) > 72 {
		return invalidf("new password must have 8 to 72 characters")
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	rec := *h.User
	rec.PasswordHash = hash
	if err := h.app.Store.PutUser(&rec); err != nil {
		return err
	}
	h.User = &rec
	return nil
}

// RequestPasswordReset mails a reset link to the user with that email, if any.
// It does not tell whether the email is known.
func (a *App) RequestPasswordReset(email string) error {
	rec, err := a.Store.UserByEmail(email)
	if errors.Is(err, state.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	// The current hash is part of the signed value, so a link dies once used.
	value := strconv.FormatUint(rec.ID, 10) + ":" + string(rec.PasswordHash[len(rec.PasswordHash)-8:])
	token, err := a.signer.Sign(audPasswordReset, value, params.ConfirmEmailMaxAge)
	if err != nil {
		return err
	}
	a.sendMail(mail.KindPasswordReset, rec, map[string]any{
		"ResetURL": "/api/users/reset-password/" + token,
	})
	return nil
}

// ResetPassword sets a new password given a token from RequestPasswordReset.
func (a *App) ResetPassword(token, password string) error {
	value, err := a.signer.Unsign(audPasswordReset, token)
	if err != nil {
		return invalidf("invalid or expired reset link")
	}
	idStr, tail, ok := strings.Cut(value, ":")
	if !ok {
		return invalidf("invalid reset link")
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return invalidf("invalid reset link")
	}
	rec, err := a.Store.GetUser(id)
	if err != nil {
		return invalidf("invalid reset link")
	}
	if string(rec.PasswordHash[len(rec.PasswordHash)-8:]) != tail {
		return invalidf("reset link already used")
	}
	if len(password) < 8 || len(password) > 72 {
		return invalidf("new password must have 8 to 72 characters")
	}
	if rec.PasswordHash, err = hashPassword(password); err != nil {
		return err
	}
	return a.Store.PutUser(rec)
}

// DeleteAccount deletes the hiker with everything they own or did.
func (h *Hiker) DeleteAccount() error {
	st := h.app.Store
	mine, err := st.ListRoutes(func(r *route.Route) bool { return r.OwnerID == h.ID() })
	if err != nil {
		return err
	}
	for _, r := range mine {
		if err := h.DeleteRoute(r.ID); err != nil {
			return err
		}
	}
	ratings, err := st.RatingsByUser(h.ID())
	if err != nil {
		return err
	}
	for _, r := range ratings {
		if err := st.DeleteRating(r.RouteID, h.ID()); err != nil {
			return err
		}
		if _, err := h.app.updateRouteRating(r.RouteID); err != nil {
			return err
		}
	}
	comments, err := st.Comments(func(c *route.Comment) bool { return c.UserID == h.ID() })
	if err != nil {
		return err
	}
	for _, c := range comments {
		if err := st.DeleteComment(c.ID); err != nil {
			return err
		}
	}
	if err := st.DeleteSharesFor(h.ID()); err != nil {
		return err
	}
	if err := st.DeleteUser(h.ID()); err != nil {
		return err
	}
	h.logger.Info("Deleted account", "user", h.ID())
	return nil
}

// GetUser returns another user's public profile.
func (h *Hiker) GetUser(id uint64) (*user.Public, error) {
	rec, err := h.app.Store.GetUser(id)
	if err != nil {
		return nil, storeErr(err, "user", id)
	}
	p := rec.Public()
	return &p, nil
}

// SearchUsers finds users matching every whitespace-separated term of query,
// in username, first or last name.
// The hiker is never included; staff and superusers only show to their peers.
func (h *Hiker) SearchUsers(query string) ([]user.Public, error) {
	if len(strings.Join(strings.Fields(query), "")) < params.SearchMinChars {
		return nil, invalidf("search needs at least %d letters", params.SearchMinChars)
	}
	terms := strings.Fields(query)
	all, err := h.app.Store.ListUsers()
	if err != nil {
		return nil, err
	}
	out := []user.Public{}
	for _, rec := range all {
		if rec.ID == h.ID() || !rec.Active {
			continue
		}
		if rec.Staff && !h.User.Staff {
			continue
		}
		if rec.Superuser && !h.User.Superuser {
			continue
		}
		match := true
		for _, term := range terms {
			if !rec.Matches(term) {
				match = false
				break
			}
		}
		if match {
			out = append(out, rec.Public())
		}
	}
	return out, nil
}
