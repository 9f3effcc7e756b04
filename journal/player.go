package journal

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/row"
)

// Play advances from a given prior state (or InitialState()) by reading
// r forward to EOF, turning every ledgerable line into a row appended
// to the logical skip-ledger (§4.G "Streaming replay contract"). It
// never writes anything itself — persistence is the observer's job —
// but it does compute every row's h_row, consulting src for any
// predecessor hash that falls before from's frontier.
//
// ctx is checked between lines so long scans can be cancelled
// cooperatively (§5); on cancellation Play returns ctx.Err() and the
// state as of the last fully observed row (partial progress is
// discarded by the caller, not by Play itself).
func Play(ctx context.Context, r io.Reader, g Grammar, from State, saltSeed [32]byte, src HashSource, observer Observer) (State, error) {
	br := bufio.NewReader(r)
	state := from
	offset := from.EolOffset
	lineNo := from.LineNo

	frontier := map[int64]hashcodec.Hash{state.N: state.RowHash}
	predecessor := func(m int64) (hashcodec.Hash, error) {
		if m == 0 {
			return hashcodec.Sentinel, nil
		}
		if h, ok := frontier[m]; ok {
			return h, nil
		}
		return src.RowHash(m)
	}

	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		lineBytes, readErr := br.ReadBytes('\n')
		if len(lineBytes) == 0 && readErr != nil {
			break
		}
		lineNo++
		startOffset := offset
		offset += int64(len(lineBytes))
		endOffset := offset

		line := strings.TrimRight(string(lineBytes), "\r\n")
		if g.IsLedgerable(line) {
			tokens, err := g.Tokenize(line)
			if err != nil {
				return state, errors.Wrapf(err, "journal: tokenizing line %d", lineNo)
			}

			n := state.N + 1
			cellTokens := make([]CellToken, len(tokens))
			for i, tok := range tokens {
				cellTokens[i] = CellToken{Text: tok}
			}
			srcRow := BuildSourceRow(n, tokens, saltSeed)
			inputHash, err := srcRow.InputHash()
			if err != nil {
				return state, errors.Wrapf(err, "journal: hashing row %d", n)
			}
			rowHash, err := ledger.ComputeRowHash(n, inputHash, predecessor)
			if err != nil {
				return state, errors.Wrapf(err, "journal: computing h_row(%d)", n)
			}
			frontier[n] = rowHash

			preState := state
			if err := observer.ObserveRow(preState, inputHash, cellTokens, startOffset, endOffset, lineNo); err != nil {
				return state, err
			}
			state = State{N: n, LineNo: lineNo, EolOffset: endOffset, RowHash: rowHash}
		}

		if readErr != nil {
			break
		}
	}
	return state, nil
}
