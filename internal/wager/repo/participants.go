package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// GetParticipant busca a posição de um usuário em uma aposta.
// Retorna (nil, nil) quando o usuário ainda não entrou.
func (p *Postgres) GetParticipant(ctx context.Context, betID, userID string) (*entities.Participant, error) {
	var pt entities.Participant
	err := p.db.QueryRowContext(ctx, `
		SELECT id, bet_id, user_id, side, amount_cents, status, payout_cents,
		       created_at, updated_at
		FROM participants WHERE bet_id=$1 AND user_id=$2`, betID, userID).Scan(
		&pt.ID, &pt.BetID, &pt.UserID, &pt.Side, &pt.AmountCents, &pt.Status,
		&pt.PayoutCents, &pt.CreatedAt, &pt.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

// CreateParticipant insere a posição. O unique (bet_id, user_id) garante no
// máximo um registro por usuário por aposta; replay do mesmo join retorna o
// registro já existente em vez de duplicar.
func (p *Postgres) CreateParticipant(ctx context.Context, pt *entities.Participant) (string, error) {
	if pt.ID == "" {
		pt.ID = uuid.NewString()
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO participants
		  (id, bet_id, user_id, side, amount_cents, status, payout_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,NOW(),NOW())
		ON CONFLICT (bet_id, user_id) DO NOTHING`,
		pt.ID, pt.BetID, pt.UserID, pt.Side, pt.AmountCents, string(pt.Status))
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		existing, err := p.GetParticipant(ctx, pt.BetID, pt.UserID)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return "", ErrConflict
		}
		return existing.ID, nil
	}
	return pt.ID, nil
}

// DeleteParticipant remove a posição (compensação de saga).
func (p *Postgres) DeleteParticipant(ctx context.Context, participantID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM participants WHERE id=$1`, participantID)
	return err
}

// ListParticipants lista todas as posições de uma aposta, id crescente.
func (p *Postgres) ListParticipants(ctx context.Context, betID string) ([]entities.Participant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, bet_id, user_id, side, amount_cents, status, payout_cents,
		       created_at, updated_at
		FROM participants WHERE bet_id=$1 ORDER BY id`, betID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Participant
	for rows.Next() {
		var pt entities.Participant
		if err := rows.Scan(&pt.ID, &pt.BetID, &pt.UserID, &pt.Side, &pt.AmountCents,
			&pt.Status, &pt.PayoutCents, &pt.CreatedAt, &pt.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// SetParticipantPayout grava o payout bruto calculado na liquidação.
func (p *Postgres) SetParticipantPayout(ctx context.Context, participantID string, payoutCents int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE participants SET payout_cents=$2, updated_at=NOW() WHERE id=$1`,
		participantID, payoutCents)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyBetJoin incrementa os agregados denormalizados da aposta após a entrada
// de um participante: pote total e contador do lado escolhido.
func (p *Postgres) ApplyBetJoin(ctx context.Context, betID, side string, amountCents int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET
		  total_pot_cents = total_pot_cents + $3,
		  side_a_count = side_a_count + CASE WHEN side_a_name = $2 THEN 1 ELSE 0 END,
		  side_b_count = side_b_count + CASE WHEN side_b_name = $2 THEN 1 ELSE 0 END,
		  updated_at = NOW()
		WHERE id=$1 AND status='ACTIVE'`,
		betID, side, amountCents)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
