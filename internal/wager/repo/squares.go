package repo

import (
	"context"
	"database/sql"
	"math/rand"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/spyderbr6/betty-sub004/internal/settlement"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// CreateSquaresGame insere um bolão novo em SETUP, grade vazia.
func (p *Postgres) CreateSquaresGame(ctx context.Context, g *entities.SquaresGame) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO squares_games
		  (id, creator_id, event_id, title, status, price_per_square_cents,
		   total_pot_cents, squares_sold, numbers_assigned, is_private,
		   created_at, updated_at)
		VALUES ($1,$2,$3,$4,'SETUP',$5,0,0,false,$6,NOW(),NOW())`,
		id, g.CreatorID, g.EventID, g.Title, g.PricePerSquareCents, g.IsPrivate)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetSquares carrega o bolão; dígitos da grade vêm de arrays do Postgres.
func (p *Postgres) GetSquares(ctx context.Context, id string) (entities.SquaresGame, error) {
	var g entities.SquaresGame
	var home, away pq.Int64Array
	err := p.db.QueryRowContext(ctx, `
		SELECT id, creator_id, event_id, title, status, price_per_square_cents,
		       total_pot_cents, squares_sold, numbers_assigned,
		       home_digits, away_digits, is_private, created_at, updated_at
		FROM squares_games WHERE id=$1`, id).Scan(
		&g.ID, &g.CreatorID, &g.EventID, &g.Title, &g.Status, &g.PricePerSquareCents,
		&g.TotalPotCents, &g.SquaresSold, &g.NumbersAssigned,
		&home, &away, &g.IsPrivate, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return entities.SquaresGame{}, ErrNotFound
	}
	if err != nil {
		return entities.SquaresGame{}, err
	}
	g.HomeDigits = toInts(home)
	g.AwayDigits = toInts(away)
	return g, nil
}

// TransitionSquaresStatus faz a transição condicional from -> to.
func (p *Postgres) TransitionSquaresStatus(ctx context.Context, gameID string, from, to entities.SquaresStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE squares_games SET status=$3, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		gameID, string(from), string(to))
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

// LockSquaresGame fecha as vendas (ACTIVE -> LOCKED) e sorteia os dígitos da
// grade. O sorteio acontece junto com o lock, nunca antes, para que nenhuma
// compra conheça a grade.
func (p *Postgres) LockSquaresGame(ctx context.Context, gameID string) error {
	home := rand.Perm(10)
	away := rand.Perm(10)
	res, err := p.db.ExecContext(ctx, `
		UPDATE squares_games SET
		  status='LOCKED', numbers_assigned=true,
		  home_digits=$2, away_digits=$3, updated_at=NOW()
		WHERE id=$1 AND status='ACTIVE'`,
		gameID, pq.Array(home), pq.Array(away))
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

// ResolveSquaresGame transiciona LIVE -> RESOLVED condicionalmente.
func (p *Postgres) ResolveSquaresGame(ctx context.Context, gameID string) error {
	return p.TransitionSquaresStatus(ctx, gameID, entities.SquaresLive, entities.SquaresResolved)
}

// PurchaseSquares efetiva a compra de quadrados numa transação com lock de
// linha. A escrita é condicional: o jogo precisa seguir ACTIVE, nenhum índice
// pode estar vendido e squaresSold jamais passa de 100; o perdedor de uma
// corrida por quadrados concorrentes recebe ErrConflict sem efeito nenhum.
func (p *Postgres) PurchaseSquares(ctx context.Context, gameID, userID string, picks []entities.SquarePick) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	var sold int
	var price int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, squares_sold, price_per_square_cents
		FROM squares_games WHERE id=$1 FOR UPDATE`, gameID).Scan(&status, &sold, &price)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != string(entities.SquaresActive) || sold+len(picks) > 100 {
		return ErrConflict
	}

	var amount int64
	for _, pick := range picks {
		id := pick.ID
		if id == "" {
			id = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO squares_picks (id, game_id, user_id, idx, amount_cents, created_at)
			VALUES ($1,$2,$3,$4,$5,NOW())
			ON CONFLICT (game_id, idx) DO NOTHING`,
			id, gameID, userID, pick.Index, price)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// quadrado já vendido: aborta a compra inteira
			return ErrConflict
		}
		amount += price
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE squares_games SET
		  squares_sold = squares_sold + $2,
		  total_pot_cents = total_pot_cents + $3,
		  updated_at = NOW()
		WHERE id=$1`, gameID, len(picks), amount)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePick remove uma compra (compensação de saga) e desfaz os agregados.
func (p *Postgres) DeletePick(ctx context.Context, pickID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var gameID string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		DELETE FROM squares_picks WHERE id=$1 RETURNING game_id, amount_cents`,
		pickID).Scan(&gameID, &amount)
	if err == sql.ErrNoRows {
		return nil // já removido
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE squares_games SET
		  squares_sold = squares_sold - 1,
		  total_pot_cents = total_pot_cents - $2,
		  updated_at = NOW()
		WHERE id=$1`, gameID, amount)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetPick carrega uma compra pelo id.
func (p *Postgres) GetPick(ctx context.Context, pickID string) (entities.SquarePick, error) {
	var pk entities.SquarePick
	err := p.db.QueryRowContext(ctx, `
		SELECT id, game_id, user_id, idx, amount_cents, created_at
		FROM squares_picks WHERE id=$1`, pickID).Scan(
		&pk.ID, &pk.GameID, &pk.UserID, &pk.Index, &pk.AmountCents, &pk.CreatedAt)
	if err == sql.ErrNoRows {
		return entities.SquarePick{}, ErrNotFound
	}
	return pk, err
}

// ListPicks lista as compras de um bolão, índice crescente.
func (p *Postgres) ListPicks(ctx context.Context, gameID string) ([]entities.SquarePick, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, game_id, user_id, idx, amount_cents, created_at
		FROM squares_picks WHERE game_id=$1 ORDER BY idx`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.SquarePick
	for rows.Next() {
		var pk entities.SquarePick
		if err := rows.Scan(&pk.ID, &pk.GameID, &pk.UserID, &pk.Index,
			&pk.AmountCents, &pk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}

func toInts(a pq.Int64Array) []int {
	if len(a) == 0 {
		return nil
	}
	out := make([]int, len(a))
	for i, v := range a {
		out[i] = int(v)
	}
	return out
}
