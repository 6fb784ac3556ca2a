package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/ledger/dto"
	"github.com/spyderbr6/betty-sub004/internal/ledger/repo"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Repo define as operações do razão usadas pelo handler HTTP
type Repo interface {
	GetOrCreateBalance(ctx context.Context, userID string) (int64, error)
	Deposit(ctx context.Context, userID string, amountCents int64) (int64, error)
	RecordDebit(ctx context.Context, t entities.Transaction) (string, error)
	RecordSettlement(ctx context.Context, t entities.Transaction) (string, error)
	FinalizePending(ctx context.Context, txID string) error
	FailPending(ctx context.Context, txID string) error
	FinalizePendingForBet(ctx context.Context, betID string) ([]string, error)
	ListTransactions(ctx context.Context, f repo.TxFilter) ([]entities.Transaction, error)
}

// Server expõe os endpoints HTTP do razão
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP do razão
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API do razão
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ledger/balance", s.getBalance)          // GET ?userId=...
	mux.HandleFunc("/ledger/deposit", s.deposit)             // POST
	mux.HandleFunc("/ledger/debits", s.recordDebit)          // POST
	mux.HandleFunc("/ledger/settlements", s.recordSettle)    // POST
	mux.HandleFunc("/ledger/transactions", s.listTxs)        // GET ?userId=&betId=&status=
	mux.HandleFunc("/ledger/transactions/", s.transactionOp) // POST {id}/finalize | {id}/fail
	mux.HandleFunc("/ledger/bets/", s.finalizeBet)           // POST {betId}/finalize
	return mux
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	bal, err := s.repo.GetOrCreateBalance(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.BalanceResponse{UserID: userID, BalanceCents: bal})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if _, err := s.repo.GetOrCreateBalance(r.Context(), req.UserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	bal, err := s.repo.Deposit(r.Context(), req.UserID, req.AmountCents)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.BalanceResponse{UserID: req.UserID, BalanceCents: bal})
}

// recordDebit debita a stake e grava a transação COMPLETED, tudo ou nada.
// Saldo insuficiente responde 402 sem nenhuma escrita.
func (s *Server) recordDebit(w http.ResponseWriter, r *http.Request) {
	var req dto.DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	typ := entities.TransactionType(req.Type)
	if typ != entities.TxBetPlaced && typ != entities.TxSquaresPurchase {
		http.Error(w, "invalid type", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if _, err := s.repo.GetOrCreateBalance(r.Context(), req.UserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	txID, err := s.repo.RecordDebit(r.Context(), entities.Transaction{
		UserID:               req.UserID,
		Type:                 typ,
		AmountCents:          req.AmountCents,
		RelatedBetID:         req.RelatedBetID,
		RelatedParticipantID: req.RelatedParticipantID,
	})
	if errors.Is(err, repo.ErrInsufficientFunds) {
		http.Error(w, err.Error(), http.StatusPaymentRequired)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.TransactionResponse{TransactionID: txID, Status: string(entities.TxCompleted)})
}

func (s *Server) recordSettle(w http.ResponseWriter, r *http.Request) {
	var req dto.SettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	t := req.Transaction
	if t.UserID == "" || t.Type == "" || t.Status == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	txID, err := s.repo.RecordSettlement(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.TransactionResponse{TransactionID: txID, Status: string(t.Status)})
}

func (s *Server) listTxs(w http.ResponseWriter, r *http.Request) {
	f := repo.TxFilter{
		UserID: r.URL.Query().Get("userId"),
		BetID:  r.URL.Query().Get("betId"),
		Status: entities.TransactionStatus(r.URL.Query().Get("status")),
	}
	txs, err := s.repo.ListTransactions(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, txs)
}

// transactionOp roteia POST /ledger/transactions/{id}/finalize e /{id}/fail
func (s *Server) transactionOp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/ledger/transactions/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	txID, op := parts[0], parts[1]

	var err error
	switch op {
	case "finalize":
		err = s.repo.FinalizePending(r.Context(), txID)
	case "fail":
		err = s.repo.FailPending(r.Context(), txID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

// finalizeBet efetiva todas as transações PENDING de uma aposta de uma vez.
func (s *Server) finalizeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/ledger/bets/")
	betID := strings.TrimSuffix(rest, "/finalize")
	if betID == "" || betID == rest {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	ids, err := s.repo.FinalizePendingForBet(r.Context(), betID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.FinalizeBetResponse{TransactionIDs: ids})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
