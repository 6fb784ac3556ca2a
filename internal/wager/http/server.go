package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/settlement"
	"github.com/spyderbr6/betty-sub004/internal/wager/cache"
	"github.com/spyderbr6/betty-sub004/internal/wager/dto"
	"github.com/spyderbr6/betty-sub004/internal/wager/feedpub"
	"github.com/spyderbr6/betty-sub004/internal/wager/repo"
)

// API expõe a superfície de consulta e mutação da plataforma de apostas.
// Toda escrita durável publica o evento de mudança correspondente no feed.
type API struct {
	Log    *zap.Logger
	Repo   *repo.Postgres
	Cache  *cache.Cache
	Feed   *feedpub.Publisher
	Engine *settlement.Engine
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		r.Post("/bets", a.createBet)
		r.Get("/bets", a.listBets)
		r.Get("/bets/{id}", a.getBet)
		r.Post("/bets/{id}/activate", a.activateBet)
		r.Post("/bets/{id}/cancel", a.cancelBet)
		r.Post("/bets/{id}/apply-join", a.applyBetJoin)
		r.Post("/bets/{id}/resolve", a.resolveBet)
		r.Get("/bets/{id}/participants", a.listParticipants)
		r.Post("/bets/{id}/participants", a.createParticipant)
		r.Delete("/participants/{id}", a.deleteParticipant)

		r.Post("/squares", a.createSquares)
		r.Get("/squares/{id}", a.getSquares)
		r.Post("/squares/{id}/activate", a.activateSquares)
		r.Post("/squares/{id}/lock", a.lockSquares)
		r.Post("/squares/{id}/live", a.liveSquares)
		r.Post("/squares/{id}/purchase", a.purchaseSquares)
		r.Post("/squares/{id}/resolve", a.resolveSquares)
		r.Get("/squares/{id}/picks", a.listPicks)
		r.Delete("/picks/{id}", a.deletePick)

		r.Post("/invitations", a.createInvitation)
		r.Get("/invitations/{id}", a.getInvitation)
		r.Post("/invitations/{id}/status", a.updateInvitationStatus)

		r.Post("/friendships", a.createFriendship)
		r.Delete("/friendships/{id}", a.deleteFriendship)
		r.Get("/friendships", a.listFriendships)

		r.Get("/users/{id}", a.getUserProfile)
		r.Put("/users/{id}", a.putUserProfile)
	})

	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
