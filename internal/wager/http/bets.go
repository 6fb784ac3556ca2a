package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/settlement"
	"github.com/spyderbr6/betty-sub004/internal/wager/dto"
	"github.com/spyderbr6/betty-sub004/internal/wager/repo"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

const betCacheTTL = 10 * time.Second

// publishBet recarrega a aposta e publica a mudança no feed; invalida o cache.
// Publicação é best-effort: a escrita durável já aconteceu e o feed reentrega.
func (a *API) publishBet(r *http.Request, betID string, op events.Op) {
	ctx := r.Context()
	a.Cache.InvalidateBet(ctx, betID)
	bet, err := a.Repo.GetBet(ctx, betID)
	if err != nil {
		a.Log.Error("bet reload for feed failed", zap.String("betId", betID), zap.Error(err))
		return
	}
	_ = a.Feed.Publish(ctx, events.KindBet, op, betID, bet)
}

func (a *API) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.CreatorID == "" || req.Title == "" || req.SideAName == "" || req.SideBName == "" || req.SideAName == req.SideBName {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	b := entities.Bet{
		CreatorID:   req.CreatorID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		SideAName:   req.SideAName,
		SideBName:   req.SideBName,
		IsPrivate:   req.IsPrivate,
	}
	if req.Deadline != "" {
		t, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid deadline")
			return
		}
		b.Deadline = t
	}

	id, err := a.Repo.CreateBet(r.Context(), &b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishBet(r, id, events.OpCreated)
	writeJSON(w, http.StatusCreated, dto.CreatedResponse{ID: id})
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cached entities.Bet
	if ok, _ := a.Cache.GetBet(r.Context(), id, &cached); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	bet, err := a.Repo.GetBet(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Cache.SetBet(r.Context(), id, bet, betCacheTTL)
	writeJSON(w, http.StatusOK, bet)
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	f := repo.BetFilter{
		Status: entities.BetStatus(r.URL.Query().Get("status")),
		UserID: r.URL.Query().Get("userId"),
	}
	if v := r.URL.Query().Get("createdAfter"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid createdAfter")
			return
		}
		f.CreatedAfter = t
	}
	if v := r.URL.Query().Get("createdBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid createdBefore")
			return
		}
		f.CreatedBefore = t
	}

	bets, err := a.Repo.ListBets(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) activateBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := a.Repo.TransitionBetStatus(r.Context(), id, entities.BetSetup, entities.BetActive)
	if errors.Is(err, settlement.ErrStatusConflict) {
		writeError(w, http.StatusConflict, "bet is not in SETUP")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishBet(r, id, events.OpUpdated)
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(entities.BetActive)})
}

func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := a.Repo.TransitionBetStatus(r.Context(), id, entities.BetSetup, entities.BetCancelled)
	if errors.Is(err, settlement.ErrStatusConflict) {
		// só se cancela antes de aceitar stakes
		writeError(w, http.StatusConflict, "bet is not in SETUP")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishBet(r, id, events.OpUpdated)
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(entities.BetCancelled)})
}

func (a *API) applyBetJoin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.JoinBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Side == "" || req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := a.Repo.ApplyBetJoin(r.Context(), id, req.Side, req.AmountCents)
	if errors.Is(err, repo.ErrConflict) {
		writeError(w, http.StatusConflict, "bet is not ACTIVE")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishBet(r, id, events.OpUpdated)
	w.WriteHeader(http.StatusOK)
}

// resolveBet liquida a aposta pelo lado vencedor. A guarda de corrida fica no
// engine; o handler só traduz os erros e publica as mudanças resultantes.
func (a *API) resolveBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.ResolveBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	err := a.Engine.ResolveBet(r.Context(), id, req.CallerID, req.WinningSide)
	switch {
	case errors.Is(err, settlement.ErrNotCreator):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, settlement.ErrNotResolvable):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, settlement.ErrResolutionRace):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.publishBet(r, id, events.OpUpdated)
	if parts, perr := a.Repo.ListParticipants(r.Context(), id); perr == nil {
		for _, pt := range parts {
			_ = a.Feed.Publish(r.Context(), events.KindParticipant, events.OpUpdated, pt.ID, pt)
		}
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(entities.BetPendingResolution)})
}

func (a *API) listParticipants(w http.ResponseWriter, r *http.Request) {
	betID := chi.URLParam(r, "id")
	if userID := r.URL.Query().Get("userId"); userID != "" {
		pt, err := a.Repo.GetParticipant(r.Context(), betID, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if pt == nil {
			writeJSON(w, http.StatusOK, []entities.Participant{})
			return
		}
		writeJSON(w, http.StatusOK, []entities.Participant{*pt})
		return
	}

	parts, err := a.Repo.ListParticipants(r.Context(), betID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (a *API) createParticipant(w http.ResponseWriter, r *http.Request) {
	betID := chi.URLParam(r, "id")
	var pt entities.Participant
	if err := json.NewDecoder(r.Body).Decode(&pt); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	pt.BetID = betID
	if pt.UserID == "" || pt.Side == "" || pt.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if pt.Status == "" {
		pt.Status = entities.ParticipantAccepted
	}

	id, err := a.Repo.CreateParticipant(r.Context(), &pt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pt.ID = id
	_ = a.Feed.Publish(r.Context(), events.KindParticipant, events.OpCreated, id, pt)
	writeJSON(w, http.StatusCreated, dto.CreatedResponse{ID: id})
}

func (a *API) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Repo.DeleteParticipant(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Feed.Publish(r.Context(), events.KindParticipant, events.OpDeleted, id,
		map[string]string{"id": id})
	w.WriteHeader(http.StatusOK)
}
