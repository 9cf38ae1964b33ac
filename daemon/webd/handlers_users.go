package webd

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/itrek/trekd/api"
	"github.com/itrek/trekd/types/user"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *WebDaemon) handleLogin(w http.ResponseWriter, r *http.Request) {
	req := &loginRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if who, ok := r.Context().Value(ctxKeyLogUser).(*string); ok {
		*who = session.Username
	}
	writeJSON(w, http.StatusOK, session)
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := hikerFrom(r).Logout(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleCheckLogin(w http.ResponseWriter, r *http.Request) {
	h := hikerFrom(r)
	writeJSON(w, http.StatusOK, &api.Session{User: &h.User.User, Token: h.Token})
}

func (s *WebDaemon) handleRegister(w http.ResponseWriter, r *http.Request) {
	req := &api.RegisterRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.app.Register(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *WebDaemon) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	session, err := s.app.ConfirmEmail(mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// handlePasswordReset always answers 202, known email or not.
func (s *WebDaemon) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	req := &passwordResetRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.RequestPasswordReset(req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type newPasswordRequest struct {
	Password string `json:"password"`
}

func (s *WebDaemon) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	req := &newPasswordRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.ResetPassword(mux.Vars(r)["token"], req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	req := &api.ProfileRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := hikerFrom(r).UpdateProfile(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	req := &changePasswordRequest{}
	if err := decode(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := hikerFrom(r).ChangePassword(req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := hikerFrom(r).DeleteAccount(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSearchUsers looks a user up by ?id=, or searches by ?q=.
func handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	hiker := hikerFrom(r)
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, errors.Join(api.ErrInvalid, err))
			return
		}
		u, err := hiker.GetUser(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []user.Public{*u})
		return
	}
	found, err := hiker.SearchUsers(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func handleActivity(w http.ResponseWriter, r *http.Request) {
	act, err := hikerFrom(r).Activity()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// handleDeleteActivity undoes one activity item and returns what is left.
// Unsharing one of my routes (kind "created") names the other user with ?user_id=.
func handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var other uint64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		if other, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeError(w, r, errors.Join(api.ErrInvalid, err))
			return
		}
	}
	act, err := hikerFrom(r).DeleteActivity(mux.Vars(r)["kind"], id, other)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func handleLevel(w http.ResponseWriter, r *http.Request) {
	level, err := hikerFrom(r).Level()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}
