package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/spyderbr6/betty-sub004/internal/settlement"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Postgres implementa o armazenamento durável de apostas, participantes,
// bolões, convites e amizades.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict: escrita condicional perdeu a corrida ou violaria um limite
	// (ex: quadrado já vendido, squaresSold passaria de 100).
	ErrConflict = errors.New("conflict")
)

// CreateBet insere uma nova aposta com status SETUP.
func (p *Postgres) CreateBet(ctx context.Context, b *entities.Bet) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets
		  (id, creator_id, title, description, category, status,
		   side_a_name, side_b_name, side_a_count, side_b_count,
		   total_pot_cents, deadline, is_private, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,'SETUP',$6,$7,0,0,0,$8,$9,NOW(),NOW())`,
		id, b.CreatorID, b.Title, b.Description, b.Category,
		b.SideAName, b.SideBName, nullTime(b.Deadline), b.IsPrivate,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetBet carrega a aposta e a lista denormalizada de participantes aceitos.
func (p *Postgres) GetBet(ctx context.Context, id string) (entities.Bet, error) {
	var b entities.Bet
	var deadline, disputeEnds sql.NullTime
	var winningSide sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, creator_id, title, description, category, status,
		       side_a_name, side_b_name, side_a_count, side_b_count,
		       total_pot_cents, deadline, winning_side, dispute_window_ends_at,
		       is_private, created_at, updated_at
		FROM bets WHERE id=$1`, id).Scan(
		&b.ID, &b.CreatorID, &b.Title, &b.Description, &b.Category, &b.Status,
		&b.SideAName, &b.SideBName, &b.SideACount, &b.SideBCount,
		&b.TotalPotCents, &deadline, &winningSide, &disputeEnds,
		&b.IsPrivate, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return entities.Bet{}, ErrNotFound
	}
	if err != nil {
		return entities.Bet{}, err
	}
	if deadline.Valid {
		b.Deadline = deadline.Time
	}
	if winningSide.Valid {
		b.WinningSide = winningSide.String
	}
	if disputeEnds.Valid {
		b.DisputeWindowEndsAt = disputeEnds.Time
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id FROM participants
		WHERE bet_id=$1 AND status='ACCEPTED'
		ORDER BY user_id`, id)
	if err != nil {
		return entities.Bet{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return entities.Bet{}, err
		}
		b.ParticipantIDs = append(b.ParticipantIDs, uid)
	}
	return b, rows.Err()
}

// BetFilter são os filtros indexados da API de listagem.
type BetFilter struct {
	Status        entities.BetStatus
	UserID        string // criador ou participante
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// ListBets consulta apostas por filtros de igualdade e faixa.
func (p *Postgres) ListBets(ctx context.Context, f BetFilter) ([]entities.Bet, error) {
	q := `
		SELECT DISTINCT b.id FROM bets b
		LEFT JOIN participants pt ON pt.bet_id = b.id
		WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		q += ` AND b.status = ` + arg(string(f.Status))
	}
	if f.UserID != "" {
		ph := arg(f.UserID)
		q += ` AND (b.creator_id = ` + ph + ` OR pt.user_id = ` + ph + `)`
	}
	if !f.CreatedAfter.IsZero() {
		q += ` AND b.created_at >= ` + arg(f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		q += ` AND b.created_at < ` + arg(f.CreatedBefore)
	}
	q += ` ORDER BY b.id`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]entities.Bet, 0, len(ids))
	for _, id := range ids {
		b, err := p.GetBet(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ListBetsPendingFinalization retorna os ids das apostas em PENDING_RESOLUTION
// cuja janela de disputa já expirou.
func (p *Postgres) ListBetsPendingFinalization(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM bets
		WHERE status='PENDING_RESOLUTION' AND dispute_window_ends_at <= $1
		ORDER BY dispute_window_ends_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TransitionBetStatus faz a transição condicional from -> to.
// Condição falha retorna settlement.ErrStatusConflict.
func (p *Postgres) TransitionBetStatus(ctx context.Context, betID string, from, to entities.BetStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$3, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		betID, string(from), string(to))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return settlement.ErrStatusConflict
	}
	return nil
}

// BeginBetResolution grava winningSide e o fim da janela de disputa com
// escrita condicional sobre status ACTIVE. Exatamente uma resolução passa;
// a perdedora da corrida recebe settlement.ErrStatusConflict e não produz
// nenhum efeito colateral. winningSide, uma vez gravado, é imutável.
func (p *Postgres) BeginBetResolution(ctx context.Context, betID, winningSide string, disputeEndsAt time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets
		SET status='PENDING_RESOLUTION', winning_side=$2,
		    dispute_window_ends_at=$3, updated_at=NOW()
		WHERE id=$1 AND status='ACTIVE'`,
		betID, winningSide, disputeEndsAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return settlement.ErrStatusConflict
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
