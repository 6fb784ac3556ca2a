package store

import "github.com/spyderbr6/betty-sub004/pkg/contracts/entities"

// Suporte ao protocolo de mutação otimista: o action pipeline aplica um patch
// local antes da confirmação do servidor, marcado com o id da operação. O
// evento correspondente do reconciler limpa a marca; em falha, o checkpoint
// devolve exatamente os valores anteriores das entidades afetadas, sem tocar
// no restante do estado (eventos não relacionados aplicados durante a espera
// são preservados).

// Kind dos refs rastreáveis por checkpoint.
const (
	RefBet         = "bet"
	RefSquares     = "squares"
	RefParticipant = "participant"
	RefPick        = "pick"
	RefInvitation  = "invitation"
)

// Ref identifica uma entidade rastreada por um checkpoint.
type Ref struct {
	Kind string
	ID   string
}

type captured struct {
	ref         Ref
	existed     bool
	bet         entities.Bet
	squares     entities.SquaresGame
	participant entities.Participant
	pick        entities.SquarePick
	invitation  entities.Invitation
}

// Checkpoint guarda o patch inverso de uma operação otimista.
type Checkpoint struct {
	opID  string
	items []captured
}

// Begin captura o estado anterior das entidades afetadas. Deve ser chamado
// antes do patch otimista; a marcação pendente vem depois, via MarkPending,
// para que o próprio patch não limpe a tag recém criada.
func (s *Store) Begin(opID string, refs ...Ref) Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := Checkpoint{opID: opID}
	for _, r := range refs {
		c := captured{ref: r}
		switch r.Kind {
		case RefBet:
			if b, ok := s.bets[r.ID]; ok {
				c.existed, c.bet = true, cloneBet(b)
			}
		case RefSquares:
			if g, ok := s.squares[r.ID]; ok {
				c.existed, c.squares = true, cloneSquares(g)
			}
		case RefParticipant:
			if p, ok := s.participants[r.ID]; ok {
				c.existed, c.participant = true, p
			}
		case RefPick:
			if p, ok := s.picks[r.ID]; ok {
				c.existed, c.pick = true, p
			}
		case RefInvitation:
			if inv, ok := s.invitations[r.ID]; ok {
				c.existed, c.invitation = true, inv
			}
		}
		cp.items = append(cp.items, c)
	}
	return cp
}

// MarkPending marca as entidades do checkpoint com o id da operação em voo.
// A tag é limpa quando o evento correspondente do reconciler chega (qualquer
// escrita autoritativa por id limpa), ou por Rollback.
func (s *Store) MarkPending(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cp.items {
		s.pending[pendingKey(c.ref.Kind, c.ref.ID)] = cp.opID
	}
}

// Rollback aplica o patch inverso do checkpoint: valores anteriores voltam
// exatamente como eram, inclusive ausência.
func (s *Store) Rollback(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cp.items {
		switch c.ref.Kind {
		case RefBet:
			if c.existed {
				s.bets[c.ref.ID] = cloneBet(c.bet)
			} else {
				delete(s.bets, c.ref.ID)
			}
		case RefSquares:
			if c.existed {
				s.squares[c.ref.ID] = cloneSquares(c.squares)
			} else {
				delete(s.squares, c.ref.ID)
			}
		case RefParticipant:
			if c.existed {
				s.participants[c.ref.ID] = c.participant
			} else {
				delete(s.participants, c.ref.ID)
			}
		case RefPick:
			if c.existed {
				s.picks[c.ref.ID] = c.pick
			} else {
				delete(s.picks, c.ref.ID)
			}
		case RefInvitation:
			if c.existed {
				s.invitations[c.ref.ID] = c.invitation
			} else {
				delete(s.invitations, c.ref.ID)
			}
		}
		delete(s.pending, pendingKey(c.ref.Kind, c.ref.ID))
	}
	s.reindexInvitesLocked()
	s.recomputePicksLocked()
}

// HasPending indica se a entidade carrega uma marca otimista em voo.
func (s *Store) HasPending(kind, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[pendingKey(kind, id)]
	return ok
}

func (s *Store) recomputePicksLocked() {
	s.purchasedSquaresIDs = make(map[string]struct{})
	for _, p := range s.picks {
		if p.UserID == s.viewerID {
			s.purchasedSquaresIDs[p.GameID] = struct{}{}
		}
	}
}

func pendingKey(kind, id string) string { return kind + ":" + id }
