package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/settlement"
	"github.com/spyderbr6/betty-sub004/internal/wager/dto"
	"github.com/spyderbr6/betty-sub004/internal/wager/repo"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

func (a *API) publishSquares(r *http.Request, gameID string, op events.Op) {
	ctx := r.Context()
	a.Cache.InvalidateSquares(ctx, gameID)
	game, err := a.Repo.GetSquares(ctx, gameID)
	if err != nil {
		a.Log.Error("squares reload for feed failed", zap.String("gameId", gameID), zap.Error(err))
		return
	}
	_ = a.Feed.Publish(ctx, events.KindSquaresGame, op, gameID, game)
}

func (a *API) createSquares(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSquaresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.CreatorID == "" || req.EventID == "" || req.PricePerSquareCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	g := entities.SquaresGame{
		CreatorID:           req.CreatorID,
		EventID:             req.EventID,
		Title:               req.Title,
		PricePerSquareCents: req.PricePerSquareCents,
		IsPrivate:           req.IsPrivate,
	}
	id, err := a.Repo.CreateSquaresGame(r.Context(), &g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishSquares(r, id, events.OpCreated)
	writeJSON(w, http.StatusCreated, dto.CreatedResponse{ID: id})
}

func (a *API) getSquares(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cached entities.SquaresGame
	if ok, _ := a.Cache.GetSquares(r.Context(), id, &cached); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	game, err := a.Repo.GetSquares(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Cache.SetSquares(r.Context(), id, game, betCacheTTL)
	writeJSON(w, http.StatusOK, game)
}

func (a *API) transitionSquares(w http.ResponseWriter, r *http.Request, from, to entities.SquaresStatus) {
	id := chi.URLParam(r, "id")
	err := a.Repo.TransitionSquaresStatus(r.Context(), id, from, to)
	if errors.Is(err, settlement.ErrStatusConflict) {
		writeError(w, http.StatusConflict, "game is not in "+string(from))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishSquares(r, id, events.OpUpdated)
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(to)})
}

func (a *API) activateSquares(w http.ResponseWriter, r *http.Request) {
	a.transitionSquares(w, r, entities.SquaresSetup, entities.SquaresActive)
}

// lockSquares fecha as vendas e sorteia os dígitos da grade em uma única
// escrita condicional.
func (a *API) lockSquares(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := a.Repo.LockSquaresGame(r.Context(), id)
	if errors.Is(err, settlement.ErrStatusConflict) {
		writeError(w, http.StatusConflict, "game is not ACTIVE")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publishSquares(r, id, events.OpUpdated)
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(entities.SquaresLocked)})
}

func (a *API) liveSquares(w http.ResponseWriter, r *http.Request) {
	a.transitionSquares(w, r, entities.SquaresLocked, entities.SquaresLive)
}

func (a *API) purchaseSquares(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	var req dto.PurchaseSquaresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" || len(req.Picks) == 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	picks := make([]entities.SquarePick, 0, len(req.Picks))
	for _, pk := range req.Picks {
		if pk.Index < 0 || pk.Index > 99 {
			writeError(w, http.StatusBadRequest, "square index out of range")
			return
		}
		picks = append(picks, entities.SquarePick{ID: pk.ID, GameID: gameID, UserID: req.UserID, Index: pk.Index})
	}

	err := a.Repo.PurchaseSquares(r.Context(), gameID, req.UserID, picks)
	if errors.Is(err, repo.ErrConflict) {
		writeError(w, http.StatusConflict, "squares unavailable")
		return
	}
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.publishSquares(r, gameID, events.OpUpdated)
	if saved, lerr := a.Repo.ListPicks(r.Context(), gameID); lerr == nil {
		byIdx := map[int]entities.SquarePick{}
		for _, pk := range saved {
			byIdx[pk.Index] = pk
		}
		for _, pk := range picks {
			if full, ok := byIdx[pk.Index]; ok {
				_ = a.Feed.Publish(r.Context(), events.KindSquarePick, events.OpCreated, full.ID, full)
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) resolveSquares(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.ResolveSquaresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	err := a.Engine.ResolveSquares(r.Context(), id, req.CallerID, req.HomeScore, req.AwayScore)
	switch {
	case errors.Is(err, settlement.ErrNotCreator):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, settlement.ErrNotResolvable), errors.Is(err, settlement.ErrResolutionRace):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.publishSquares(r, id, events.OpUpdated)
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(entities.SquaresResolved)})
}

func (a *API) listPicks(w http.ResponseWriter, r *http.Request) {
	picks, err := a.Repo.ListPicks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, picks)
}

func (a *API) deletePick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pick, err := a.Repo.GetPick(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		w.WriteHeader(http.StatusOK) // já removido
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := a.Repo.DeletePick(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Feed.Publish(r.Context(), events.KindSquarePick, events.OpDeleted, id,
		map[string]string{"id": id})
	a.publishSquares(r, pick.GameID, events.OpUpdated)
	w.WriteHeader(http.StatusOK)
}
