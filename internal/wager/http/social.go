package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spyderbr6/betty-sub004/internal/wager/dto"
	"github.com/spyderbr6/betty-sub004/internal/wager/repo"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

func (a *API) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	kind := entities.InvitationKind(req.Kind)
	if kind != entities.InviteBet && kind != entities.InviteSquares {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}
	if req.TargetID == "" || req.FromUserID == "" || req.ToUserID == "" || req.FromUserID == req.ToUserID {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	inv := entities.Invitation{
		Kind:       kind,
		TargetID:   req.TargetID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expiresAt")
			return
		}
		inv.ExpiresAt = t
	}

	id, err := a.Repo.CreateInvitation(r.Context(), &inv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if full, gerr := a.Repo.GetInvitation(r.Context(), id); gerr == nil {
		_ = a.Feed.Publish(r.Context(), events.KindInvitation, events.OpCreated, id, full)
	}
	writeJSON(w, http.StatusCreated, dto.CreatedResponse{ID: id})
}

func (a *API) getInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := a.Repo.GetInvitation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// updateInvitationStatus responde um convite PENDING. Convite já respondido
// retorna 409; o chamador trata como convergência, não como falha.
func (a *API) updateInvitationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.InvitationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	status := entities.InvitationStatus(req.Status)
	if status != entities.InviteAccepted && status != entities.InviteDeclined {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	err := a.Repo.UpdateInvitationStatus(r.Context(), id, status)
	if errors.Is(err, repo.ErrConflict) {
		writeError(w, http.StatusConflict, "invitation is not PENDING")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if full, gerr := a.Repo.GetInvitation(r.Context(), id); gerr == nil {
		_ = a.Feed.Publish(r.Context(), events.KindInvitation, events.OpUpdated, id, full)
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(status)})
}

func (a *API) createFriendship(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateFriendshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" || req.OtherUserID == "" || req.UserID == req.OtherUserID {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	f, err := a.Repo.CreateFriendship(r.Context(), req.UserID, req.OtherUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Feed.Publish(r.Context(), events.KindFriendship, events.OpCreated, f.ID, f)
	writeJSON(w, http.StatusCreated, dto.CreatedResponse{ID: f.ID})
}

func (a *API) deleteFriendship(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := a.Repo.DeleteFriendship(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		w.WriteHeader(http.StatusOK) // já removida
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Feed.Publish(r.Context(), events.KindFriendship, events.OpDeleted, id, f)
	w.WriteHeader(http.StatusOK)
}

func (a *API) listFriendships(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	fs, err := a.Repo.ListFriendships(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (a *API) getUserProfile(w http.ResponseWriter, r *http.Request) {
	u, err := a.Repo.GetUserProfile(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) putUserProfile(w http.ResponseWriter, r *http.Request) {
	var u entities.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	u.ID = chi.URLParam(r, "id")
	if u.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "displayName required")
		return
	}
	if err := a.Repo.UpsertUserProfile(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}
