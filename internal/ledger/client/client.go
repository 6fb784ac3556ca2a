package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ledgerdto "github.com/spyderbr6/betty-sub004/internal/ledger/dto"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Client fala com a API REST do ledger-service. Usado pelo pipeline de ações
// (saldo e débitos) e pela liquidação (registro de payouts PENDING).
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

// GetBalance retorna o saldo corrente do usuário em centavos.
func (c *Client) GetBalance(ctx context.Context, userID string) (int64, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/ledger/balance?userId="+userID, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("ledger balance http %d", res.StatusCode)
	}
	var out ledgerdto.BalanceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.BalanceCents, nil
}

func (c *Client) recordDebit(ctx context.Context, req ledgerdto.DebitRequest) (string, error) {
	body, _ := json.Marshal(req)
	hreq, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/ledger/debits", bytes.NewReader(body))
	hreq.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(hreq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("ledger debit http %d", res.StatusCode)
	}
	var out ledgerdto.TransactionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.TransactionID, nil
}

// RecordBetPlacement registra a stake como débito imediato BET_PLACED.
func (c *Client) RecordBetPlacement(ctx context.Context, userID string, amountCents int64, betID, participantID, title, side string) (string, error) {
	return c.recordDebit(ctx, ledgerdto.DebitRequest{
		UserID:               userID,
		Type:                 string(entities.TxBetPlaced),
		AmountCents:          amountCents,
		RelatedBetID:         betID,
		RelatedParticipantID: participantID,
	})
}

// RecordSquaresPurchase registra a compra de quadrados como débito imediato.
func (c *Client) RecordSquaresPurchase(ctx context.Context, userID string, amountCents int64, gameID string) (string, error) {
	return c.recordDebit(ctx, ledgerdto.DebitRequest{
		UserID:       userID,
		Type:         string(entities.TxSquaresPurchase),
		AmountCents:  amountCents,
		RelatedBetID: gameID,
	})
}

// RecordSettlement grava uma transação de liquidação sem mover saldo.
func (c *Client) RecordSettlement(ctx context.Context, t entities.Transaction) (string, error) {
	body, _ := json.Marshal(ledgerdto.SettlementRequest{Transaction: t})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/ledger/settlements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("ledger settlement http %d", res.StatusCode)
	}
	var out ledgerdto.TransactionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.TransactionID, nil
}

// FinalizeBet efetiva todas as transações PENDING ligadas à aposta.
func (c *Client) FinalizeBet(ctx context.Context, betID string) ([]string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/ledger/bets/"+betID+"/finalize", nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger finalize bet http %d", res.StatusCode)
	}
	var out ledgerdto.FinalizeBetResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.TransactionIDs, nil
}
