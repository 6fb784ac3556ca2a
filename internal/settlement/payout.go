package settlement

import (
	"math/big"
	"sort"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// PayoutLine é o resultado calculado para um participante.
type PayoutLine struct {
	Participant entities.Participant
	Outcome     entities.TransactionType // BET_WON | BET_LOST | BET_REFUNDED
	GrossCents  int64
	FeeCents    int64
	NetCents    int64
}

// ComputePayouts faz o rateio pari-mutuel do pote entre os vencedores.
//
// Cada vencedor recebe totalPot * (stake / totalWinnerStake): recupera a
// própria aposta mais a fração proporcional do que os perdedores apostaram.
// O rateio é feito em centavos inteiros pelo método do maior resto, então a
// soma dos payouts brutos dos vencedores é exatamente o pote, sem sobra nem
// falta de centavo. Desempate do resto por id de participante crescente,
// mantendo o resultado determinístico.
//
// Quando ninguém escolheu o lado vencedor (totalWinnerStake == 0) a fórmula
// pro-rata é indefinida; a política adotada é reembolso integral: todo
// participante ACCEPTED recebe de volta exatamente a própria stake, sem taxa.
//
// A taxa da plataforma é calculada aqui e somente aqui (feeBps sobre o bruto,
// arredondamento half-up), apenas sobre payouts estritamente positivos. O
// finalizador aplica o líquido registrado, nunca recalcula.
func ComputePayouts(totalPotCents int64, parts []entities.Participant, winningSide string, feeBps int) []PayoutLine {
	accepted := make([]entities.Participant, 0, len(parts))
	for _, p := range parts {
		if p.Status == entities.ParticipantAccepted {
			accepted = append(accepted, p)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].ID < accepted[j].ID })

	var totalWinnerStake int64
	for _, p := range accepted {
		if p.Side == winningSide {
			totalWinnerStake += p.AmountCents
		}
	}

	lines := make([]PayoutLine, 0, len(accepted))

	if totalWinnerStake == 0 {
		for _, p := range accepted {
			lines = append(lines, PayoutLine{
				Participant: p,
				Outcome:     entities.TxBetRefunded,
				GrossCents:  p.AmountCents,
				NetCents:    p.AmountCents,
			})
		}
		return lines
	}

	// maior resto: base = floor(pot*stake/total), sobra distribuída aos
	// maiores restos, empate por id crescente. O produto pot*stake pode passar
	// de int64, então é calculado em big.Int; base e resto cabem de volta em
	// int64 (base <= pot, resto < total).
	type share struct {
		idx  int
		base int64
		rem  int64
	}
	var shares []share
	var distributed int64
	total := big.NewInt(totalWinnerStake)
	for i, p := range accepted {
		if p.Side != winningSide {
			continue
		}
		num := new(big.Int).Mul(big.NewInt(totalPotCents), big.NewInt(p.AmountCents))
		quo, rem := new(big.Int).QuoRem(num, total, new(big.Int))
		shares = append(shares, share{idx: i, base: quo.Int64(), rem: rem.Int64()})
		distributed += quo.Int64()
	}
	leftover := totalPotCents - distributed
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].rem != shares[j].rem {
			return shares[i].rem > shares[j].rem
		}
		return accepted[shares[i].idx].ID < accepted[shares[j].idx].ID
	})
	gross := make(map[int]int64, len(shares))
	for _, s := range shares {
		g := s.base
		if leftover > 0 {
			g++
			leftover--
		}
		gross[s.idx] = g
	}

	for i, p := range accepted {
		if p.Side == winningSide {
			g := gross[i]
			fee := platformFee(g, feeBps)
			lines = append(lines, PayoutLine{
				Participant: p,
				Outcome:     entities.TxBetWon,
				GrossCents:  g,
				FeeCents:    fee,
				NetCents:    g - fee,
			})
		} else {
			lines = append(lines, PayoutLine{
				Participant: p,
				Outcome:     entities.TxBetLost,
			})
		}
	}
	return lines
}

// platformFee aplica feeBps sobre o bruto com arredondamento half-up.
// Taxa só incide sobre payout estritamente positivo. Mesma proteção de
// overflow do rateio: o produto bruto*bps é calculado em big.Int.
func platformFee(grossCents int64, feeBps int) int64 {
	if grossCents <= 0 || feeBps <= 0 {
		return 0
	}
	fee := new(big.Int).Mul(big.NewInt(grossCents), big.NewInt(int64(feeBps)))
	fee.Add(fee, big.NewInt(5000))
	fee.Quo(fee, big.NewInt(10000))
	return fee.Int64()
}

// WinningSquareIndex resolve o quadrado vencedor a partir do placar final:
// coluna do último dígito do placar da casa, linha do visitante.
// Retorna -1 se os números da grade ainda não foram sorteados.
func WinningSquareIndex(g *entities.SquaresGame, homeScore, awayScore int) int {
	if !g.NumbersAssigned || len(g.HomeDigits) != 10 || len(g.AwayDigits) != 10 {
		return -1
	}
	col, row := -1, -1
	for i, d := range g.HomeDigits {
		if d == homeScore%10 {
			col = i
			break
		}
	}
	for i, d := range g.AwayDigits {
		if d == awayScore%10 {
			row = i
			break
		}
	}
	if col < 0 || row < 0 {
		return -1
	}
	return row*10 + col
}
