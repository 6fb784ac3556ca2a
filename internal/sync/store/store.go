package store

import (
	"sync"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Store é o espelho em memória das entidades visíveis para um usuário conectado.
// É propriedade exclusiva de uma sessão: só o reconciler e o action pipeline
// escrevem nele, sempre através de operações serializadas. Leituras retornam
// um snapshot completo e consistente, nunca um estado parcialmente aplicado.
type Store struct {
	mu       sync.RWMutex
	viewerID string

	bets         map[string]entities.Bet
	squares      map[string]entities.SquaresGame
	participants map[string]entities.Participant
	picks        map[string]entities.SquarePick
	invitations  map[string]entities.Invitation
	friendships  map[string]entities.Friendship

	// Conjuntos derivados, mantidos junto com os mapas
	friendIDs           map[string]struct{}
	invitedBetIDs       map[string]struct{}
	invitedSquaresIDs   map[string]struct{}
	purchasedSquaresIDs map[string]struct{}

	// Tags de operações otimistas em voo: "kind:id" -> opID
	pending map[string]string
}

// New cria um Store vazio para o usuário informado.
func New(viewerID string) *Store {
	return &Store{
		viewerID:            viewerID,
		bets:                make(map[string]entities.Bet),
		squares:             make(map[string]entities.SquaresGame),
		participants:        make(map[string]entities.Participant),
		picks:               make(map[string]entities.SquarePick),
		invitations:         make(map[string]entities.Invitation),
		friendships:         make(map[string]entities.Friendship),
		friendIDs:           make(map[string]struct{}),
		invitedBetIDs:       make(map[string]struct{}),
		invitedSquaresIDs:   make(map[string]struct{}),
		purchasedSquaresIDs: make(map[string]struct{}),
		pending:             make(map[string]string),
	}
}

// ViewerID retorna o dono da sessão.
func (s *Store) ViewerID() string { return s.viewerID }

// PutBet grava a aposta por id, sobrescrevendo qualquer versão anterior.
// Aplicar o mesmo estado duas vezes é um no-op lógico.
func (s *Store) PutBet(b entities.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[b.ID] = cloneBet(b)
	delete(s.pending, pendingKey("bet", b.ID))
}

// RemoveBet remove a aposta do espelho local (não apaga o registro durável).
func (s *Store) RemoveBet(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bets, id)
	delete(s.pending, pendingKey("bet", id))
}

func (s *Store) PutSquares(g entities.SquaresGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.squares[g.ID] = cloneSquares(g)
	delete(s.pending, pendingKey("squares", g.ID))
}

func (s *Store) RemoveSquares(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.squares, id)
	delete(s.pending, pendingKey("squares", id))
}

func (s *Store) PutParticipant(p entities.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p
	delete(s.pending, pendingKey("participant", p.ID))
}

func (s *Store) RemoveParticipant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, id)
	delete(s.pending, pendingKey("participant", id))
}

// PutPick grava a compra de quadrado e mantém o conjunto de bolões comprados.
func (s *Store) PutPick(p entities.SquarePick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks[p.ID] = p
	if p.UserID == s.viewerID {
		s.purchasedSquaresIDs[p.GameID] = struct{}{}
	}
	delete(s.pending, pendingKey("pick", p.ID))
}

func (s *Store) RemovePick(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.picks[id]
	delete(s.picks, id)
	delete(s.pending, pendingKey("pick", id))
	if !ok || old.UserID != s.viewerID {
		return
	}
	// recalcula pertencimento: pode haver outros quadrados do viewer no mesmo bolão
	for _, p := range s.picks {
		if p.UserID == s.viewerID && p.GameID == old.GameID {
			return
		}
	}
	delete(s.purchasedSquaresIDs, old.GameID)
}

// PutInvitation grava o convite e mantém os conjuntos de convites do viewer.
// Duplicatas para o mesmo alvo são toleradas; o mais recente por id vence.
func (s *Store) PutInvitation(inv entities.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[inv.ID] = inv
	s.reindexInvitesLocked()
	delete(s.pending, pendingKey("invitation", inv.ID))
}

func (s *Store) RemoveInvitation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invitations, id)
	s.reindexInvitesLocked()
	delete(s.pending, pendingKey("invitation", id))
}

// reindexInvitesLocked reconstrói os conjuntos invited* a partir dos convites
// PENDING endereçados ao viewer. Reconstruir (em vez de incrementar) garante
// idempotência sob replay de eventos.
func (s *Store) reindexInvitesLocked() {
	s.invitedBetIDs = make(map[string]struct{})
	s.invitedSquaresIDs = make(map[string]struct{})
	for _, inv := range s.invitations {
		if inv.ToUserID != s.viewerID || inv.Status != entities.InvitePending {
			continue
		}
		switch inv.Kind {
		case entities.InviteBet:
			s.invitedBetIDs[inv.TargetID] = struct{}{}
		case entities.InviteSquares:
			s.invitedSquaresIDs[inv.TargetID] = struct{}{}
		}
	}
}

func (s *Store) PutFriendship(f entities.Friendship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[f.ID] = f
	s.reindexFriendsLocked()
}

func (s *Store) RemoveFriendship(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friendships, id)
	s.reindexFriendsLocked()
}

func (s *Store) reindexFriendsLocked() {
	s.friendIDs = make(map[string]struct{})
	for _, f := range s.friendships {
		if other := f.Other(s.viewerID); other != "" {
			s.friendIDs[other] = struct{}{}
		}
	}
}
