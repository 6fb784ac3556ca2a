package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/actions"
	"github.com/spyderbr6/betty-sub004/internal/sync/reconcile"
	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/internal/sync/views"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Session é a réplica local de um usuário conectado: Store próprio, reconciler
// aplicando o feed e pipeline de ações. Eventos entram por um canal e são
// aplicados por uma única goroutine; as projeções derivadas saem por outro
// canal, sempre colapsadas para a versão mais recente.
type Session struct {
	Log        *zap.Logger
	UserID     string
	Store      *store.Store
	Reconciler *reconcile.Reconciler
	Pipeline   *actions.Pipeline

	events      chan events.ChangeEvent
	projections chan views.Projection
}

// Deps são os colaboradores externos compartilhados entre sessões.
type Deps struct {
	Log      *zap.Logger
	Lookup   reconcile.Lookup
	Platform actions.Platform
	Ledger   actions.Ledger
	Notifier actions.Notifier
}

// New monta uma sessão para o usuário. O reconciler e o pipeline compartilham
// o mesmo Store; qualquer mudança de estado dispara a recomputação da
// projeção.
func New(d Deps, userID string) *Session {
	st := store.New(userID)
	s := &Session{
		Log:         d.Log.With(zap.String("userId", userID)),
		UserID:      userID,
		Store:       st,
		events:      make(chan events.ChangeEvent, 256),
		projections: make(chan views.Projection, 1),
	}
	s.Reconciler = &reconcile.Reconciler{
		Log:      s.Log,
		Store:    st,
		Lookup:   d.Lookup,
		OnChange: s.publish,
	}
	s.Pipeline = &actions.Pipeline{
		Log:      s.Log,
		Store:    st,
		Platform: d.Platform,
		Ledger:   d.Ledger,
		Notifier: d.Notifier,
	}
	return s
}

// Enqueue entrega um evento do feed para a sessão. Fila cheia descarta o mais
// antigo: o feed reentrega e o merge por registro completo absorve o pulo.
func (s *Session) Enqueue(ev events.ChangeEvent) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

// Projections é o canal de saída, com no máximo a projeção mais recente.
func (s *Session) Projections() <-chan views.Projection { return s.projections }

// Run aplica eventos até o contexto encerrar. Única goroutine que escreve no
// Store por via de reconciliação.
func (s *Session) Run(ctx context.Context) {
	// projeção inicial, antes de qualquer evento
	s.publish()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.Reconciler.Apply(ctx, ev)
		}
	}
}

// publish recomputa as projeções e colapsa no canal de saída.
func (s *Session) publish() {
	snap := s.Store.Snapshot()
	proj := views.Compute(snap)
	select {
	case s.projections <- proj:
	default:
		select {
		case <-s.projections:
		default:
		}
		select {
		case s.projections <- proj:
		default:
		}
	}
}

// Publish força a recomputação (usado após ações do pipeline, cujo patch
// otimista não passa pelo reconciler).
func (s *Session) Publish() { s.publish() }
