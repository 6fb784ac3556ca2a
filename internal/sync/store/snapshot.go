package store

import "github.com/spyderbr6/betty-sub004/pkg/contracts/entities"

// Snapshot é uma cópia profunda e consistente do estado da sessão.
// Mutações no snapshot nunca afetam o Store.
type Snapshot struct {
	ViewerID string

	Bets         map[string]entities.Bet
	Squares      map[string]entities.SquaresGame
	Participants map[string]entities.Participant
	Picks        map[string]entities.SquarePick
	Invitations  map[string]entities.Invitation
	Friendships  map[string]entities.Friendship

	FriendIDs           map[string]struct{}
	InvitedBetIDs       map[string]struct{}
	InvitedSquaresIDs   map[string]struct{}
	PurchasedSquaresIDs map[string]struct{}
}

// Snapshot retorna a visão completa do estado atual.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Snapshot{
		ViewerID:            s.viewerID,
		Bets:                make(map[string]entities.Bet, len(s.bets)),
		Squares:             make(map[string]entities.SquaresGame, len(s.squares)),
		Participants:        make(map[string]entities.Participant, len(s.participants)),
		Picks:               make(map[string]entities.SquarePick, len(s.picks)),
		Invitations:         make(map[string]entities.Invitation, len(s.invitations)),
		Friendships:         make(map[string]entities.Friendship, len(s.friendships)),
		FriendIDs:           cloneSet(s.friendIDs),
		InvitedBetIDs:       cloneSet(s.invitedBetIDs),
		InvitedSquaresIDs:   cloneSet(s.invitedSquaresIDs),
		PurchasedSquaresIDs: cloneSet(s.purchasedSquaresIDs),
	}
	for id, b := range s.bets {
		out.Bets[id] = cloneBet(b)
	}
	for id, g := range s.squares {
		out.Squares[id] = cloneSquares(g)
	}
	for id, p := range s.participants {
		out.Participants[id] = p
	}
	for id, p := range s.picks {
		out.Picks[id] = p
	}
	for id, inv := range s.invitations {
		out.Invitations[id] = inv
	}
	for id, f := range s.friendships {
		out.Friendships[id] = f
	}
	return out
}

// GetBet retorna a aposta atual por id, com cópia profunda.
func (s *Store) GetBet(id string) (entities.Bet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bets[id]
	if !ok {
		return entities.Bet{}, false
	}
	return cloneBet(b), true
}

// GetSquares retorna o bolão atual por id, com cópia profunda.
func (s *Store) GetSquares(id string) (entities.SquaresGame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.squares[id]
	if !ok {
		return entities.SquaresGame{}, false
	}
	return cloneSquares(g), true
}

// GetInvitation retorna o convite atual por id.
func (s *Store) GetInvitation(id string) (entities.Invitation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[id]
	return inv, ok
}

func cloneBet(b entities.Bet) entities.Bet {
	out := b
	if b.ParticipantIDs != nil {
		out.ParticipantIDs = append([]string(nil), b.ParticipantIDs...)
	}
	return out
}

func cloneSquares(g entities.SquaresGame) entities.SquaresGame {
	out := g
	if g.HomeDigits != nil {
		out.HomeDigits = append([]int(nil), g.HomeDigits...)
	}
	if g.AwayDigits != nil {
		out.AwayDigits = append([]int(nil), g.AwayDigits...)
	}
	return out
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
