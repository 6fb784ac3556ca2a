package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Postgres implementa o razão: saldos por usuário e transações imutáveis.
// Transações nunca são editadas depois de terminais; PENDING só transiciona
// para COMPLETED ou FAILED.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// GetOrCreateBalance retorna o saldo do usuário, criando a conta zerada se
// não existir. Transacional para não criar conta duplicada em corrida.
func (p *Postgres) GetOrCreateBalance(ctx context.Context, userID string) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bal int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM balances WHERE user_id=$1`, userID).Scan(&bal)
	if err == sql.ErrNoRows {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO balances(user_id, balance_cents, version) VALUES($1,0,1)
			 ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return 0, err
		}
		bal = 0
	} else if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return bal, nil
}

// Deposit credita saldo e registra a transação COMPLETED.
func (p *Postgres) Deposit(ctx context.Context, userID string, amountCents int64) (newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var before int64
	if err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM balances WHERE user_id=$1 FOR UPDATE`, userID).Scan(&before); err != nil {
		return 0, err
	}

	after := before + amountCents
	if _, err = tx.ExecContext(ctx,
		`UPDATE balances SET balance_cents=$2, version=version+1 WHERE user_id=$1`,
		userID, after); err != nil {
		return 0, err
	}
	if err = insertTx(ctx, tx, entities.Transaction{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Type:               "DEPOSIT",
		Status:             entities.TxCompleted,
		AmountCents:        amountCents,
		ActualAmountCents:  amountCents,
		BalanceBeforeCents: before,
		BalanceAfterCents:  after,
	}); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return after, nil
}

// RecordDebit registra uma transação de débito imediato (BET_PLACED,
// SQUARES_PURCHASE): debita o saldo com lock pessimista e grava a transação
// COMPLETED com snapshots de saldo. Saldo insuficiente não escreve nada.
func (p *Postgres) RecordDebit(ctx context.Context, t entities.Transaction) (string, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var before int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM balances WHERE user_id=$1 FOR UPDATE`, t.UserID).Scan(&before)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if before < t.AmountCents {
		return "", ErrInsufficientFunds
	}

	after := before - t.AmountCents
	if _, err = tx.ExecContext(ctx,
		`UPDATE balances SET balance_cents=$2, version=version+1 WHERE user_id=$1`,
		t.UserID, after); err != nil {
		return "", err
	}

	t.ID = uuid.NewString()
	t.Status = entities.TxCompleted
	t.ActualAmountCents = t.AmountCents
	t.BalanceBeforeCents = before
	t.BalanceAfterCents = after
	if err = insertTx(ctx, tx, t); err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return t.ID, nil
}

// RecordSettlement grava uma transação produzida pela liquidação, sem mover
// saldo: payouts entram PENDING e só viram crédito na finalização; perdas
// entram COMPLETED com valor zero, apenas para auditoria.
func (p *Postgres) RecordSettlement(ctx context.Context, t entities.Transaction) (string, error) {
	t.ID = uuid.NewString()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	if err = insertTx(ctx, tx, t); err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return t.ID, nil
}

// FinalizePending efetiva uma transação PENDING: credita o líquido no saldo e
// marca COMPLETED com os snapshots. Idempotente: transação já terminal não
// move saldo de novo.
func (p *Postgres) FinalizePending(ctx context.Context, txID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID, status string
	var net int64
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, status, actual_amount_cents
		FROM transactions WHERE id=$1 FOR UPDATE`, txID).Scan(&userID, &status, &net)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != string(entities.TxPending) {
		return nil
	}

	var before int64
	if err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM balances WHERE user_id=$1 FOR UPDATE`, userID).Scan(&before); err != nil {
		return err
	}
	after := before + net
	if _, err = tx.ExecContext(ctx,
		`UPDATE balances SET balance_cents=$2, version=version+1 WHERE user_id=$1`,
		userID, after); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE transactions SET status='COMPLETED',
		  balance_before_cents=$2, balance_after_cents=$3, updated_at=NOW()
		WHERE id=$1`, txID, before, after); err != nil {
		return err
	}
	return tx.Commit()
}

// FailPending marca uma transação PENDING como FAILED, sem crédito.
// Usado quando uma disputa procede dentro da janela.
func (p *Postgres) FailPending(ctx context.Context, txID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET status='FAILED', updated_at=NOW()
		WHERE id=$1 AND status='PENDING'`, txID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil // já terminal; idempotente
	}
	return nil
}

// FinalizePendingForBet efetiva todas as transações PENDING ligadas a uma
// aposta e retorna os ids afetados. Chamado pelo finalizador quando a janela
// de disputa expira.
func (p *Postgres) FinalizePendingForBet(ctx context.Context, betID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM transactions
		WHERE related_bet_id=$1 AND status='PENDING' ORDER BY id`, betID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := p.FinalizePending(ctx, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// TxFilter filtra a listagem de transações.
type TxFilter struct {
	UserID string
	BetID  string
	Status entities.TransactionStatus
}

// ListTransactions consulta o histórico, mais recente primeiro.
func (p *Postgres) ListTransactions(ctx context.Context, f TxFilter) ([]entities.Transaction, error) {
	q := `
		SELECT id, user_id, type, status, amount_cents, platform_fee_cents,
		       actual_amount_cents, balance_before_cents, balance_after_cents,
		       related_bet_id, related_participant_id, created_at, updated_at
		FROM transactions WHERE 1=1`
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		q += ` AND user_id = $1`
	}
	if f.BetID != "" {
		args = append(args, f.BetID)
		q += ` AND related_bet_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Transaction
	for rows.Next() {
		var t entities.Transaction
		var betID, partID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Status, &t.AmountCents,
			&t.PlatformFeeCents, &t.ActualAmountCents, &t.BalanceBeforeCents,
			&t.BalanceAfterCents, &betID, &partID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.RelatedBetID = betID.String
		t.RelatedParticipantID = partID.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func insertTx(ctx context.Context, tx *sql.Tx, t entities.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
		  (id, user_id, type, status, amount_cents, platform_fee_cents,
		   actual_amount_cents, balance_before_cents, balance_after_cents,
		   related_bet_id, related_participant_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())`,
		t.ID, t.UserID, string(t.Type), string(t.Status), t.AmountCents,
		t.PlatformFeeCents, t.ActualAmountCents, t.BalanceBeforeCents,
		t.BalanceAfterCents, nullStr(t.RelatedBetID), nullStr(t.RelatedParticipantID))
	return err
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
