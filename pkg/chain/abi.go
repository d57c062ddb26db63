package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolABIJSON = `[
    {
        "inputs": [],
        "name": "rewardDistributed",
        "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
        "stateMutability": "view",
        "type": "function"
    }
]`

const orchestratorABIJSON = `[
    {
        "inputs": [],
        "name": "maximumRebaseTime",
        "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "inputs": [],
        "name": "rebaseRequiredSupply",
        "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "inputs": [],
        "name": "rebase",
        "outputs": [],
        "stateMutability": "nonpayable",
        "type": "function"
    }
]`

const pairABIJSON = `[
    {
        "inputs": [],
        "name": "getReserves",
        "outputs": [
            {"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
            {"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
            {"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
        ],
        "stateMutability": "view",
        "type": "function"
    }
]`

// Method names used against the contracts above.
const (
	MethodRewardDistributed    = "rewardDistributed"
	MethodMaximumRebaseTime    = "maximumRebaseTime"
	MethodRebaseRequiredSupply = "rebaseRequiredSupply"
	MethodRebase               = "rebase"
	MethodGetReserves          = "getReserves"
)

var (
	PoolABI         = mustParseABI(poolABIJSON)
	OrchestratorABI = mustParseABI(orchestratorABIJSON)
	PairABI         = mustParseABI(pairABIJSON)
)

func mustParseABI(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return &parsed
}
