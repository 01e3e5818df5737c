package entity

import "math/big"

// Balance is the native-currency balance of an address, ready for display.
type Balance struct {
	WalletAddress    string   `json:"walletAddress"`
	NetworkName      string   `json:"networkName"`
	TokenSymbol      string   `json:"tokenSymbol"`
	Decimals         uint8    `json:"decimals"`
	Amount           *big.Int `json:"-"`
	BaseUnits        string   `json:"baseUnits"`
	FormattedBalance string   `json:"formattedBalance"`
}
