package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Handler recebe eventos já normalizados e validados.
type Handler func(events.ChangeEvent)

// Adapter consome os tópicos do change feed (um reader por tipo de entidade),
// normaliza o envelope e repassa ao handler. Não aplica nenhum filtro de
// negócio: apenas descarta payloads sem id, que são logados e nunca chegam ao
// usuário. Erros de stream são reportados via OnDegraded e o consumo continua
// tentando; o estado local segue servindo dados antigos em vez de esvaziar.
type Adapter struct {
	Log     *zap.Logger
	Readers map[events.EntityKind]*kafka.Reader
	Handler Handler

	OnEvent    func(kind events.EntityKind)             // métricas (counter++)
	OnInvalid  func(kind events.EntityKind)             // métricas: payload descartado
	OnDegraded func(kind events.EntityKind, err error)  // feed degradado para a entidade
}

// Run inicia um loop de consumo por tipo de entidade e bloqueia até o
// cancelamento do contexto.
func (a *Adapter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for kind, r := range a.Readers {
		wg.Add(1)
		go func(kind events.EntityKind, r *kafka.Reader) {
			defer wg.Done()
			a.consume(ctx, kind, r)
		}(kind, r)
	}
	wg.Wait()
}

func (a *Adapter) consume(ctx context.Context, kind events.EntityKind, r *kafka.Reader) {
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // encerra se o contexto for cancelado
			}
			a.Log.Warn("change feed read failed",
				zap.String("entity", string(kind)), zap.Error(err))
			if a.OnDegraded != nil {
				a.OnDegraded(kind, err)
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var ev events.ChangeEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			a.Log.Warn("invalid change event",
				zap.String("entity", string(kind)), zap.Error(err))
			if a.OnInvalid != nil {
				a.OnInvalid(kind)
			}
			continue
		}
		if ev.Entity == "" {
			ev.Entity = kind
		}

		// Validação mínima de campos obrigatórios: sem id é descarte duro
		if payloadID(ev.Payload) == "" {
			a.Log.Warn("change event without id dropped",
				zap.String("entity", string(ev.Entity)), zap.String("op", string(ev.Op)))
			if a.OnInvalid != nil {
				a.OnInvalid(kind)
			}
			continue
		}

		if a.OnEvent != nil {
			a.OnEvent(kind)
		}
		a.Handler(ev)
	}
}

// payloadID extrai o id do payload bruto, ou vazio se ausente.
func payloadID(raw json.RawMessage) string {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return p.ID
}
