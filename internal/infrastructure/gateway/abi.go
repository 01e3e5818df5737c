package gateway

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodGetAllAsks    = "getAllAsks"
	methodCreateAsk     = "createInvestmentAsk"
	methodInvest        = "invest"
	eventInvested       = "Invested"
	methodMintToken     = "mintToken"
	methodTransferToken = "transferToken"
)

// PoolABIJSON describes the investment pool contract.
const PoolABIJSON = `[
	{"type":"function","name":"getAllAsks","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"tuple[]","components":[
			{"name":"id","type":"uint256"},
			{"name":"business","type":"string"},
			{"name":"amount","type":"uint256"},
			{"name":"funded","type":"uint256"},
			{"name":"status","type":"uint8"}
		]}
	]},
	{"type":"function","name":"createInvestmentAsk","stateMutability":"nonpayable","inputs":[
		{"name":"business","type":"string"},
		{"name":"amount","type":"uint256"},
		{"name":"description","type":"string"}
	],"outputs":[]},
	{"type":"function","name":"invest","stateMutability":"payable","inputs":[
		{"name":"askId","type":"uint256"}
	],"outputs":[]},
	{"type":"event","name":"Invested","anonymous":false,"inputs":[
		{"name":"investor","type":"address","indexed":true},
		{"name":"askId","type":"uint256","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`

// TokenServiceABIJSON describes the token-service precompile wrappers.
const TokenServiceABIJSON = `[
	{"type":"function","name":"mintToken","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},
		{"name":"amount","type":"int64"}
	],"outputs":[{"name":"newTotalSupply","type":"int64"}]},
	{"type":"function","name":"transferToken","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},
		{"name":"sender","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"amount","type":"int64"}
	],"outputs":[]}
]`

var (
	parsedPoolABI   abi.ABI
	parsedPoolErr   error
	parsedPoolOnce  sync.Once
	parsedTokenABI  abi.ABI
	parsedTokenErr  error
	parsedTokenOnce sync.Once
)

// PoolABI returns the parsed pool ABI.
func PoolABI() (abi.ABI, error) {
	parsedPoolOnce.Do(func() {
		parsedPoolABI, parsedPoolErr = abi.JSON(strings.NewReader(PoolABIJSON))
		if parsedPoolErr != nil {
			parsedPoolErr = fmt.Errorf("failed to parse pool ABI: %w", parsedPoolErr)
		}
	})
	return parsedPoolABI, parsedPoolErr
}

// TokenServiceABI returns the parsed token-service ABI.
func TokenServiceABI() (abi.ABI, error) {
	parsedTokenOnce.Do(func() {
		parsedTokenABI, parsedTokenErr = abi.JSON(strings.NewReader(TokenServiceABIJSON))
		if parsedTokenErr != nil {
			parsedTokenErr = fmt.Errorf("failed to parse token service ABI: %w", parsedTokenErr)
		}
	})
	return parsedTokenABI, parsedTokenErr
}
