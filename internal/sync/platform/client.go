package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	wagerdto "github.com/spyderbr6/betty-sub004/internal/wager/dto"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Client fala com a API REST do wager-service. Implementa tanto a interface de
// mutação do pipeline de ações quanto os lookups de enriquecimento do
// reconciler.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("platform GET %s http %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(dst)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, rd)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("platform POST %s http %d", path, res.StatusCode)
	}
	return nil
}

func (c *Client) del(ctx context.Context, path string) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+path, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("platform DELETE %s http %d", path, res.StatusCode)
	}
	return nil
}

// GetBet busca a aposta autoritativa (lookup de enriquecimento).
func (c *Client) GetBet(ctx context.Context, id string) (entities.Bet, error) {
	var b entities.Bet
	err := c.getJSON(ctx, "/v1/bets/"+id, &b)
	return b, err
}

// GetSquares busca o bolão autoritativo.
func (c *Client) GetSquares(ctx context.Context, id string) (entities.SquaresGame, error) {
	var g entities.SquaresGame
	err := c.getJSON(ctx, "/v1/squares/"+id, &g)
	return g, err
}

// GetUserProfile busca o perfil mínimo do remetente de um convite.
func (c *Client) GetUserProfile(ctx context.Context, id string) (entities.UserProfile, error) {
	var u entities.UserProfile
	err := c.getJSON(ctx, "/v1/users/"+id, &u)
	return u, err
}

// GetParticipant retorna a posição de (betID, userID), ou (nil, nil) quando o
// usuário ainda não entrou.
func (c *Client) GetParticipant(ctx context.Context, betID, userID string) (*entities.Participant, error) {
	var parts []entities.Participant
	if err := c.getJSON(ctx, "/v1/bets/"+betID+"/participants?userId="+userID, &parts); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return &parts[0], nil
}

func (c *Client) CreateParticipant(ctx context.Context, p entities.Participant) error {
	return c.postJSON(ctx, "/v1/bets/"+p.BetID+"/participants", p)
}

func (c *Client) DeleteParticipant(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/participants/"+id)
}

func (c *Client) ApplyBetJoin(ctx context.Context, betID, userID, side string, amountCents int64) error {
	return c.postJSON(ctx, "/v1/bets/"+betID+"/apply-join", wagerdto.JoinBetRequest{
		UserID: userID, Side: side, AmountCents: amountCents,
	})
}

func (c *Client) UpdateInvitationStatus(ctx context.Context, id string, status entities.InvitationStatus) error {
	return c.postJSON(ctx, "/v1/invitations/"+id+"/status", wagerdto.InvitationStatusRequest{
		Status: string(status),
	})
}

func (c *Client) PurchaseSquares(ctx context.Context, gameID, userID string, picks []entities.SquarePick) error {
	req := wagerdto.PurchaseSquaresRequest{UserID: userID}
	for _, pk := range picks {
		req.Picks = append(req.Picks, wagerdto.PickRequest{ID: pk.ID, Index: pk.Index})
	}
	return c.postJSON(ctx, "/v1/squares/"+gameID+"/purchase", req)
}

func (c *Client) DeletePick(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/picks/"+id)
}
