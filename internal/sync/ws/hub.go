package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/actions"
	"github.com/spyderbr6/betty-sub004/internal/sync/session"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Hub gerencia as conexões WebSocket dos usuários. Cada conexão carrega uma
// Session própria (réplica local + pipeline); o hub só faz o transporte.
type Hub struct {
	Log      *zap.Logger
	Deps     session.Deps
	Manager  *session.Manager
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*conn]struct{} // userID -> conexões
}

// conn serializa as escritas de uma conexão em um único canal de saída,
// respeitando a restrição de escritor único do gorilla.
type conn struct {
	ws  *websocket.Conn
	out chan ServerMsg
}

// NewHub cria o hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, deps session.Deps, mgr *session.Manager, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		Log:      log,
		Deps:     deps,
		Manager:  mgr,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		conns:    make(map[string]map[*conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão: cria a sessão do usuário,
// envia projeções a cada mudança de estado e executa as ações recebidas.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	wsc, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer wsc.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := session.New(h.Deps, userID)
	h.Manager.Add(sess)
	defer h.Manager.Remove(sess)

	c := &conn{ws: wsc, out: make(chan ServerMsg, 16)}
	h.register(userID, c)
	defer h.unregister(userID, c)

	go sess.Run(ctx)

	// escritor único da conexão
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case proj := <-sess.Projections():
				if err := wsc.WriteJSON(ServerMsg{Type: "projection", Projection: &proj}); err != nil {
					cancel()
					return
				}
			case msg := <-c.out:
				if err := wsc.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var msg ClientMsg
		if err := wsc.ReadJSON(&msg); err != nil {
			return
		}
		h.handleAction(ctx, sess, c, msg)
	}
}

func (h *Hub) handleAction(ctx context.Context, sess *session.Session, c *conn, msg ClientMsg) {
	switch msg.Type {
	case "ping":
		c.send(ServerMsg{Type: "pong"})
		return

	case "join_bet":
		res, err := sess.Pipeline.JoinBet(ctx, msg.BetID, msg.Side, msg.AmountCents)
		sess.Publish()
		if err != nil {
			c.send(resultErr(msg.Type, err))
			return
		}
		c.send(ServerMsg{Type: "result", Action: msg.Type, OK: true,
			ParticipantID: res.ParticipantID, TransactionID: res.TransactionID,
			AlreadyJoined: res.AlreadyJoined})

	case "accept_invitation":
		res, err := sess.Pipeline.AcceptInvitation(ctx, msg.InviteID, msg.Side, msg.AmountCents)
		sess.Publish()
		if err != nil {
			c.send(resultErr(msg.Type, err))
			return
		}
		c.send(ServerMsg{Type: "result", Action: msg.Type, OK: true,
			ParticipantID: res.ParticipantID, TransactionID: res.TransactionID,
			AlreadyJoined: res.AlreadyJoined})

	case "decline_invitation":
		err := sess.Pipeline.DeclineInvitation(ctx, msg.InviteID)
		sess.Publish()
		if err != nil {
			c.send(resultErr(msg.Type, err))
			return
		}
		c.send(ServerMsg{Type: "result", Action: msg.Type, OK: true})

	case "purchase_squares":
		res, err := sess.Pipeline.PurchaseSquares(ctx, msg.GameID, msg.Indices)
		sess.Publish()
		if err != nil {
			c.send(resultErr(msg.Type, err))
			return
		}
		c.send(ServerMsg{Type: "result", Action: msg.Type, OK: true,
			TransactionID: res.TransactionID})

	default:
		c.send(ServerMsg{Type: "result", Action: msg.Type, Error: "unknown action"})
	}
}

// resultErr traduz os erros nomeados do pipeline para a resposta do cliente.
func resultErr(action string, err error) ServerMsg {
	msg := "internal error"
	switch {
	case errors.Is(err, actions.ErrAlreadyJoined):
		msg = "already joined"
	case errors.Is(err, actions.ErrInsufficientBalance):
		msg = "insufficient balance"
	case errors.Is(err, actions.ErrBetNoLongerAvailable):
		msg = "bet no longer available"
	case errors.Is(err, actions.ErrSquaresUnavailable):
		msg = "squares no longer available"
	case errors.Is(err, actions.ErrTransactionRecordingFailed):
		msg = "transaction recording failed"
	default:
		msg = err.Error()
	}
	return ServerMsg{Type: "result", Action: action, Error: msg}
}

func (c *conn) send(msg ServerMsg) {
	select {
	case c.out <- msg:
	default:
		// cliente lento: descarta em vez de travar o leitor
	}
}

func (h *Hub) register(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[*conn]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// NotifyUser entrega uma notificação às conexões ativas do usuário.
// O conjunto é copiado sob o lock: unregister pode mutar o mapa original
// enquanto o envio acontece.
func (h *Hub) NotifyUser(n events.Notification) {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[n.UserID]))
	for c := range h.conns[n.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return
	}
	for _, c := range targets {
		c.send(ServerMsg{Type: "notification", Notification: raw})
	}
}
