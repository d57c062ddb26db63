package subgraph

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/debaseonomics/debasex/pkg/units"
	"github.com/shopspring/decimal"
)

// RebaseEvent is one historical rebase as indexed by the subgraph.
type RebaseEvent struct {
	Epoch uint64 `json:"epoch"`
	// ExchangeRate is kept in on-chain units.
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	// SupplyAdjustment is signed, in 18-decimal on-chain units.
	SupplyAdjustment *big.Int `json:"supplyAdjustment"`
	RebaseLag        uint64   `json:"rebaseLag"`
	// Timestamp is unix seconds.
	Timestamp int64 `json:"timestamp"`
}

// rpcRebase is the wire shape: GraphQL BigInt/BigDecimal scalars arrive as strings, but
// plain numbers are accepted too.
type rpcRebase struct {
	Epoch            json.RawMessage `json:"epoch"`
	ExchangeRate     json.RawMessage `json:"exchangeRate"`
	SupplyAdjustment json.RawMessage `json:"supplyAdjustment"`
	RebaseLag        json.RawMessage `json:"rebaseLag"`
	Timestamp        json.RawMessage `json:"timestamp"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type rebasesResponse struct {
	Data struct {
		Rebases []rpcRebase `json:"rebases"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func scalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	return strings.Trim(s, `"`)
}

func (r rpcRebase) toEvent() (RebaseEvent, error) {
	epoch, err := strconv.ParseUint(scalar(r.Epoch), 10, 64)
	if err != nil {
		return RebaseEvent{}, fmt.Errorf("epoch: %w", err)
	}

	rate := decimal.Zero
	if s := scalar(r.ExchangeRate); s != "" && s != "null" {
		rate, err = decimal.NewFromString(s)
		if err != nil {
			return RebaseEvent{}, fmt.Errorf("epoch %d exchangeRate: %w", epoch, err)
		}
	}

	adjustment, err := units.ParseRaw(scalar(r.SupplyAdjustment))
	if err != nil {
		return RebaseEvent{}, fmt.Errorf("epoch %d supplyAdjustment: %w", epoch, err)
	}

	var lag uint64
	if s := scalar(r.RebaseLag); s != "" && s != "null" {
		lag, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return RebaseEvent{}, fmt.Errorf("epoch %d rebaseLag: %w", epoch, err)
		}
	}

	ts, err := strconv.ParseInt(scalar(r.Timestamp), 10, 64)
	if err != nil {
		return RebaseEvent{}, fmt.Errorf("epoch %d timestamp: %w", epoch, err)
	}

	return RebaseEvent{
		Epoch:            epoch,
		ExchangeRate:     rate,
		SupplyAdjustment: adjustment,
		RebaseLag:        lag,
		Timestamp:        ts,
	}, nil
}
