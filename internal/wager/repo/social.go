package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// CreateInvitation insere um convite PENDING.
func (p *Postgres) CreateInvitation(ctx context.Context, inv *entities.Invitation) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invitations
		  (id, kind, target_id, from_user_id, to_user_id, status, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,'PENDING',$6,NOW())`,
		id, string(inv.Kind), inv.TargetID, inv.FromUserID, inv.ToUserID,
		nullTime(inv.ExpiresAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetInvitation carrega um convite pelo id.
func (p *Postgres) GetInvitation(ctx context.Context, id string) (entities.Invitation, error) {
	var inv entities.Invitation
	var expires sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, kind, target_id, from_user_id, to_user_id, status, expires_at, created_at
		FROM invitations WHERE id=$1`, id).Scan(
		&inv.ID, &inv.Kind, &inv.TargetID, &inv.FromUserID, &inv.ToUserID,
		&inv.Status, &expires, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return entities.Invitation{}, ErrNotFound
	}
	if err != nil {
		return entities.Invitation{}, err
	}
	if expires.Valid {
		inv.ExpiresAt = expires.Time
	}
	return inv, nil
}

// UpdateInvitationStatus faz a transição PENDING -> status terminal.
// Convite já respondido ou expirado retorna ErrConflict.
func (p *Postgres) UpdateInvitationStatus(ctx context.Context, id string, status entities.InvitationStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE invitations SET status=$2 WHERE id=$1 AND status='PENDING'`,
		id, string(status))
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

// ExpireInvitations marca como EXPIRED os convites PENDING vencidos e retorna
// os afetados, para publicação no feed de mudanças.
func (p *Postgres) ExpireInvitations(ctx context.Context) ([]entities.Invitation, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE invitations SET status='EXPIRED'
		WHERE status='PENDING' AND expires_at IS NOT NULL AND expires_at < NOW()
		RETURNING id, kind, target_id, from_user_id, to_user_id, status, expires_at, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Invitation
	for rows.Next() {
		var inv entities.Invitation
		var expires sql.NullTime
		if err := rows.Scan(&inv.ID, &inv.Kind, &inv.TargetID, &inv.FromUserID,
			&inv.ToUserID, &inv.Status, &expires, &inv.CreatedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			inv.ExpiresAt = expires.Time
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// CreateFriendship materializa a amizade como par ordenado (user1 < user2),
// então o mesmo par nunca gera duas linhas.
func (p *Postgres) CreateFriendship(ctx context.Context, userA, userB string) (entities.Friendship, error) {
	u1, u2 := userA, userB
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	f := entities.Friendship{ID: uuid.NewString(), User1ID: u1, User2ID: u2}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO friendships (id, user1_id, user2_id, created_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = friendships.user1_id
		RETURNING id, created_at`,
		f.ID, u1, u2).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return entities.Friendship{}, err
	}
	return f, nil
}

// DeleteFriendship remove a amizade e retorna a linha removida, para o feed.
func (p *Postgres) DeleteFriendship(ctx context.Context, id string) (entities.Friendship, error) {
	var f entities.Friendship
	err := p.db.QueryRowContext(ctx, `
		DELETE FROM friendships WHERE id=$1
		RETURNING id, user1_id, user2_id, created_at`,
		id).Scan(&f.ID, &f.User1ID, &f.User2ID, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return entities.Friendship{}, ErrNotFound
	}
	return f, err
}

// ListFriendships lista as amizades de um usuário.
func (p *Postgres) ListFriendships(ctx context.Context, userID string) ([]entities.Friendship, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM friendships WHERE user1_id=$1 OR user2_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Friendship
	for rows.Next() {
		var f entities.Friendship
		if err := rows.Scan(&f.ID, &f.User1ID, &f.User2ID, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetUserProfile carrega o subconjunto de perfil usado no enriquecimento.
func (p *Postgres) GetUserProfile(ctx context.Context, userID string) (entities.UserProfile, error) {
	var u entities.UserProfile
	err := p.db.QueryRowContext(ctx, `
		SELECT id, display_name FROM users WHERE id=$1`, userID).Scan(&u.ID, &u.DisplayName)
	if err == sql.ErrNoRows {
		return entities.UserProfile{}, ErrNotFound
	}
	return u, err
}

// UpsertUserProfile grava o perfil mínimo de um usuário.
func (p *Postgres) UpsertUserProfile(ctx context.Context, u entities.UserProfile) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name)
		VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`,
		u.ID, u.DisplayName)
	return err
}
