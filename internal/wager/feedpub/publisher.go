package feedpub

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	sharedkafka "github.com/spyderbr6/betty-sub004/internal/shared/kafka"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/topics"
)

// Publisher emite eventos de mudança de entidade nos tópicos *_changes depois
// de cada escrita durável. A entrega é at-least-once: em caso de dúvida o
// chamador reemite, e os consumidores absorvem a duplicata por idempotência.
type Publisher struct {
	log     *zap.Logger
	writers map[events.EntityKind]*sharedkafka.Writer

	OnPublished func(kind events.EntityKind)
	OnError     func()
}

// New cria os writers, um por tópico de entidade. SQUARE_PICK viaja no mesmo
// tópico do bolão a que pertence; o envelope diferencia o tipo.
func New(log *zap.Logger, brokers string) *Publisher {
	squaresWriter := sharedkafka.NewWriter(brokers, topics.SquaresChanges)
	return &Publisher{
		log: log,
		writers: map[events.EntityKind]*sharedkafka.Writer{
			events.KindBet:         sharedkafka.NewWriter(brokers, topics.BetChanges),
			events.KindSquaresGame: squaresWriter,
			events.KindSquarePick:  squaresWriter,
			events.KindParticipant: sharedkafka.NewWriter(brokers, topics.ParticipantChanges),
			events.KindInvitation:  sharedkafka.NewWriter(brokers, topics.InviteChanges),
			events.KindFriendship:  sharedkafka.NewWriter(brokers, topics.FriendshipChanges),
		},
	}
}

// Publish serializa a entidade no envelope e escreve no tópico do tipo.
// key é o id da entidade, mantendo mudanças do mesmo registro na mesma
// partição.
func (p *Publisher) Publish(ctx context.Context, kind events.EntityKind, op events.Op, key string, entity any) error {
	w, ok := p.writers[kind]
	if !ok {
		p.log.Error("no writer for entity kind", zap.String("kind", string(kind)))
		return nil
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	ev := events.ChangeEvent{
		Entity:   kind,
		Op:       op,
		Payload:  payload,
		TsUnixMs: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := sharedkafka.WriteJSON(ctx, w, key, raw); err != nil {
		p.log.Error("change event publish failed",
			zap.String("kind", string(kind)), zap.String("key", key), zap.Error(err))
		if p.OnError != nil {
			p.OnError()
		}
		return err
	}
	if p.OnPublished != nil {
		p.OnPublished(kind)
	}
	return nil
}

// Close fecha todos os writers.
func (p *Publisher) Close() error {
	seen := map[*sharedkafka.Writer]bool{}
	var firstErr error
	for _, w := range p.writers {
		if seen[w] {
			continue
		}
		seen[w] = true
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
