package settlement

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

func part(id, userID, side string, stake int64) entities.Participant {
	return entities.Participant{
		ID:          id,
		UserID:      userID,
		Side:        side,
		AmountCents: stake,
		Status:      entities.ParticipantAccepted,
	}
}

func TestComputePayoutsProRata(t *testing.T) {
	// pote 15000: vencedores com 3000 e 7000, perdedor com 5000
	parts := []entities.Participant{
		part("p1", "alice", "A", 3000),
		part("p2", "bob", "A", 7000),
		part("p3", "carol", "B", 5000),
	}
	lines := ComputePayouts(15000, parts, "A", 500)
	require.Len(t, lines, 3)

	byID := map[string]PayoutLine{}
	for _, l := range lines {
		byID[l.Participant.ID] = l
	}

	// alice: 15000 * 3000/10000 = 4500, taxa 5% = 225
	require.Equal(t, entities.TxBetWon, byID["p1"].Outcome)
	require.Equal(t, int64(4500), byID["p1"].GrossCents)
	require.Equal(t, int64(225), byID["p1"].FeeCents)
	require.Equal(t, int64(4275), byID["p1"].NetCents)

	// bob: 15000 * 7000/10000 = 10500, taxa 525
	require.Equal(t, int64(10500), byID["p2"].GrossCents)
	require.Equal(t, int64(9975), byID["p2"].NetCents)

	// carol perde: linha de auditoria com valor zero
	require.Equal(t, entities.TxBetLost, byID["p3"].Outcome)
	require.Equal(t, int64(0), byID["p3"].GrossCents)
	require.Equal(t, int64(0), byID["p3"].FeeCents)
}

func TestComputePayoutsExactConservation(t *testing.T) {
	// divisão que não fecha em centavos: o maior resto absorve a sobra
	parts := []entities.Participant{
		part("p1", "u1", "A", 1),
		part("p2", "u2", "A", 2),
	}
	lines := ComputePayouts(101, parts, "A", 0)

	var sum int64
	for _, l := range lines {
		sum += l.GrossCents
	}
	require.Equal(t, int64(101), sum)

	byID := map[string]int64{}
	for _, l := range lines {
		byID[l.Participant.ID] = l.GrossCents
	}
	// base 33/67, sobra de 1 centavo vai para o maior resto (p1: resto 2 de 3)
	require.Equal(t, int64(34), byID["p1"])
	require.Equal(t, int64(67), byID["p2"])
}

func TestComputePayoutsNoWinnersRefundsEveryone(t *testing.T) {
	parts := []entities.Participant{
		part("p1", "u1", "B", 3000),
		part("p2", "u2", "B", 2000),
	}
	lines := ComputePayouts(5000, parts, "A", 500)
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.Equal(t, entities.TxBetRefunded, l.Outcome)
		require.Equal(t, l.Participant.AmountCents, l.GrossCents)
		require.Equal(t, l.Participant.AmountCents, l.NetCents)
		require.Zero(t, l.FeeCents, "reembolso não paga taxa")
	}
}

func TestComputePayoutsIgnoresNonAccepted(t *testing.T) {
	declined := part("p2", "u2", "A", 5000)
	declined.Status = entities.ParticipantDeclined
	parts := []entities.Participant{
		part("p1", "u1", "A", 5000),
		declined,
	}
	lines := ComputePayouts(5000, parts, "A", 0)
	require.Len(t, lines, 1)
	require.Equal(t, "p1", lines[0].Participant.ID)
	require.Equal(t, int64(5000), lines[0].GrossCents)
}

func TestComputePayoutsHugePotDoesNotOverflow(t *testing.T) {
	// pot*stake estoura int64; o rateio em big.Int mantém a conservação exata
	const pot = int64(9_000_000_000_000_000_001)
	parts := []entities.Participant{
		part("p1", "u1", "A", 1),
		part("p2", "u2", "A", 2),
	}
	lines := ComputePayouts(pot, parts, "A", 0)

	byID := map[string]int64{}
	var sum int64
	for _, l := range lines {
		require.Greater(t, l.GrossCents, int64(0))
		byID[l.Participant.ID] = l.GrossCents
		sum += l.GrossCents
	}
	require.Equal(t, pot, sum)
	// bases 3e18 (resto 1) e 6e18 (resto 2); a sobra de 1 vai ao maior resto
	require.Equal(t, int64(3_000_000_000_000_000_000), byID["p1"])
	require.Equal(t, int64(6_000_000_000_000_000_001), byID["p2"])
}

func TestPlatformFeeHalfUp(t *testing.T) {
	tests := []struct {
		gross  int64
		feeBps int
		want   int64
	}{
		{10000, 500, 500},
		{10, 500, 1},  // 0.5 arredonda para cima
		{9, 500, 0},   // 0.45 arredonda para baixo
		{0, 500, 0},   // taxa só sobre payout positivo
		{10000, 0, 0}, // sem taxa configurada
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, platformFee(tt.gross, tt.feeBps),
			"platformFee(%d, %d)", tt.gross, tt.feeBps)
	}
}

// Propriedade: a soma dos payouts brutos dos vencedores é exatamente o pote,
// para qualquer combinação de stakes, e nenhum payout é negativo.
func TestComputePayoutsConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "participants")
		var parts []entities.Participant
		var pot int64
		hasWinner := false
		for i := 0; i < n; i++ {
			side := "B"
			if rapid.Bool().Draw(t, "winnerSide") {
				side = "A"
				hasWinner = true
			}
			stake := rapid.Int64Range(1, 1_000_000).Draw(t, "stake")
			pot += stake
			parts = append(parts, part(
				string(rune('a'+i%26))+string(rune('0'+i/26)), "u", side, stake))
		}
		if !hasWinner {
			// o caso sem vencedores tem teste dedicado de reembolso
			parts[0].Side = "A"
		}

		feeBps := rapid.IntRange(0, 2000).Draw(t, "feeBps")
		lines := ComputePayouts(pot, parts, "A", feeBps)

		var winners int64
		for _, l := range lines {
			require.GreaterOrEqual(t, l.GrossCents, int64(0))
			require.GreaterOrEqual(t, l.NetCents, int64(0))
			if l.Outcome == entities.TxBetWon {
				winners += l.GrossCents
				require.Equal(t, l.GrossCents-l.FeeCents, l.NetCents)
			}
		}
		require.Equal(t, pot, winners, "soma dos brutos deve igualar o pote")
	})
}

func TestWinningSquareIndex(t *testing.T) {
	g := &entities.SquaresGame{
		NumbersAssigned: true,
		HomeDigits:      []int{3, 1, 4, 0, 9, 2, 6, 5, 8, 7}, // colunas
		AwayDigits:      []int{7, 0, 8, 2, 6, 9, 1, 5, 3, 4}, // linhas
	}
	// placar 13 x 20: casa dígito 3 -> coluna 0; visitante dígito 0 -> linha 1
	require.Equal(t, 10, WinningSquareIndex(g, 13, 20))

	// placar 0 x 0: casa 0 -> coluna 3; visitante 0 -> linha 1
	require.Equal(t, 13, WinningSquareIndex(g, 0, 0))

	// grade sem sorteio
	require.Equal(t, -1, WinningSquareIndex(&entities.SquaresGame{}, 7, 3))
}
