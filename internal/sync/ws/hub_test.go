package ws

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/sync/session"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop(), session.Deps{}, session.NewManager(),
		func(r *http.Request) bool { return true })
}

// O fan-out de notificações roda concorrente com conexões entrando e saindo;
// a iteração precisa acontecer sobre uma cópia do conjunto (rodar com -race).
func TestNotifyUserConcurrentWithChurn(t *testing.T) {
	h := newTestHub()

	// conexão persistente mantém o conjunto do usuário sempre não vazio
	keep := &conn{out: make(chan ServerMsg, 1)}
	h.register("u1", keep)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			c := &conn{out: make(chan ServerMsg, 1)}
			h.register("u1", c)
			h.unregister("u1", c)
		}
	}()

	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 5000; i++ {
			h.NotifyUser(events.Notification{UserID: "u1", Type: "BET_RESOLVED"})
		}
	}()

	wg.Wait()

	// a conexão persistente recebeu ao menos uma notificação
	select {
	case msg := <-keep.out:
		require.Equal(t, "notification", msg.Type)
	default:
		t.Fatal("nenhuma notificação entregue à conexão persistente")
	}
}

func TestNotifyUserOnlyTargetsOwner(t *testing.T) {
	h := newTestHub()
	mine := &conn{out: make(chan ServerMsg, 1)}
	other := &conn{out: make(chan ServerMsg, 1)}
	h.register("u1", mine)
	h.register("u2", other)

	h.NotifyUser(events.Notification{UserID: "u1", Type: "BET_FINALIZED"})

	select {
	case msg := <-mine.out:
		require.Equal(t, "notification", msg.Type)
	default:
		t.Fatal("dono não recebeu a notificação")
	}
	select {
	case <-other.out:
		t.Fatal("notificação entregue ao usuário errado")
	default:
	}
}

func TestNotifyUserNoConnectionsIsNoOp(t *testing.T) {
	h := newTestHub()
	h.NotifyUser(events.Notification{UserID: "ghost", Type: "BET_RESOLVED"})

	c := &conn{out: make(chan ServerMsg, 1)}
	h.register("u1", c)
	h.unregister("u1", c)
	h.NotifyUser(events.Notification{UserID: "u1", Type: "BET_RESOLVED"})
	select {
	case <-c.out:
		t.Fatal("conexão removida não deveria receber nada")
	default:
	}
}
