package domain

import "strings"

// Network identifies a supported blockchain network.
type Network string

const (
	NetworkBTC         Network = "btc"
	NetworkBTCTestnet  Network = "btc_test"
	NetworkETH         Network = "eth"
	NetworkETHSepolia  Network = "eth_sepolia"
	NetworkBSC         Network = "bsc"
	NetworkBSCTestnet  Network = "bsc_test"
	NetworkSOL         Network = "sol"
	NetworkSOLTestnet  Network = "sol_test"
	NetworkTRON        Network = "tron"
	NetworkTRONTestnet Network = "tron_test"
	NetworkXRP         Network = "xrp"
	NetworkXRPTestnet  Network = "xrp_test"
)

// AllNetworks lists every network in display order.
var AllNetworks = []Network{
	NetworkBTC, NetworkBTCTestnet,
	NetworkETH, NetworkETHSepolia,
	NetworkBSC, NetworkBSCTestnet,
	NetworkSOL, NetworkSOLTestnet,
	NetworkTRON, NetworkTRONTestnet,
	NetworkXRP, NetworkXRPTestnet,
}

// DepositNetworks and WithdrawNetworks are the networks open for each flow.
var (
	DepositNetworks = []Network{
		NetworkBTCTestnet, NetworkETHSepolia, NetworkBSCTestnet,
		NetworkSOLTestnet, NetworkTRONTestnet, NetworkXRPTestnet,
	}
	WithdrawNetworks = []Network{
		NetworkBTCTestnet, NetworkETHSepolia, NetworkBSCTestnet,
		NetworkSOLTestnet, NetworkTRONTestnet, NetworkXRPTestnet,
	}
)

// NetworkInfo is display metadata for a network.
type NetworkInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Icon   string `json:"icon"`
}

const iconBase = "https://s2.coinmarketcap.com/static/img/coins/64x64/"

var networkInfo = map[Network]NetworkInfo{
	NetworkBTC:         {Name: "Bitcoin Network", Symbol: "BTC", Icon: iconBase + "1.png"},
	NetworkBTCTestnet:  {Name: "Bitcoin Testnet", Symbol: "BTC", Icon: iconBase + "1.png"},
	NetworkETH:         {Name: "Ethereum Network", Symbol: "ETH", Icon: iconBase + "1027.png"},
	NetworkETHSepolia:  {Name: "Ethereum Sepolia", Symbol: "ETH", Icon: iconBase + "1027.png"},
	NetworkBSC:         {Name: "Binance Smart Chain", Symbol: "BNB", Icon: iconBase + "1839.png"},
	NetworkBSCTestnet:  {Name: "Binance Smart Chain Testnet", Symbol: "BNB", Icon: iconBase + "1839.png"},
	NetworkSOL:         {Name: "Solana", Symbol: "SOL", Icon: iconBase + "5426.png"},
	NetworkSOLTestnet:  {Name: "Solana Devnet", Symbol: "SOL", Icon: iconBase + "5426.png"},
	NetworkTRON:        {Name: "Tron Network", Symbol: "TRX", Icon: iconBase + "1958.png"},
	NetworkTRONTestnet: {Name: "Tron Shasta", Symbol: "TRX", Icon: iconBase + "1958.png"},
	NetworkXRP:         {Name: "Ripple Network", Symbol: "XRP", Icon: iconBase + "52.png"},
	NetworkXRPTestnet:  {Name: "Ripple Testnet", Symbol: "XRP", Icon: iconBase + "52.png"},
}

// LookupNetwork returns display metadata for n.
func LookupNetwork(n Network) (NetworkInfo, bool) {
	info, ok := networkInfo[n]
	return info, ok
}

// CanDeposit reports whether n accepts deposits.
func CanDeposit(n Network) bool { return containsNetwork(DepositNetworks, n) }

// CanWithdraw reports whether n allows withdrawals.
func CanWithdraw(n Network) bool { return containsNetwork(WithdrawNetworks, n) }

func containsNetwork(list []Network, n Network) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

// TokenInfo is static metadata for a token symbol.
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

var tokens = map[string]TokenInfo{
	"BNB":   {Name: "Binance Coin", Symbol: "BNB", Decimals: 18},
	"WBNB":  {Name: "Wrapped Binance Coin", Symbol: "WBNB", Decimals: 18},
	"USDT":  {Name: "Tether USD", Symbol: "USDT", Decimals: 6},
	"USDC":  {Name: "USD Coin", Symbol: "USDC", Decimals: 6},
	"BUSD":  {Name: "Binance USD", Symbol: "BUSD", Decimals: 18},
	"MATIC": {Name: "Polygon", Symbol: "MATIC", Decimals: 18},
	"DOGE":  {Name: "Dogecoin", Symbol: "DOGE", Decimals: 8},
	"WBTC":  {Name: "Wrapped Bitcoin", Symbol: "WBTC", Decimals: 8},
	"BTC":   {Name: "Bitcoin", Symbol: "BTC", Decimals: 8},
	"ETH":   {Name: "Ethereum", Symbol: "ETH", Decimals: 18},
	"WETH":  {Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
	"SOL":   {Name: "Solana", Symbol: "SOL", Decimals: 9},
	"WSOL":  {Name: "Wrapped Solana", Symbol: "WSOL", Decimals: 9},
	"TRX":   {Name: "Tron", Symbol: "TRX", Decimals: 6},
	"XRP":   {Name: "Ripple", Symbol: "XRP", Decimals: 6},
}

var tokenIcons = map[string]string{
	"BNB":   iconBase + "1839.png",
	"WBNB":  iconBase + "1839.png",
	"USDT":  iconBase + "825.png",
	"USDC":  iconBase + "3408.png",
	"BUSD":  iconBase + "4687.png",
	"MATIC": iconBase + "3890.png",
	"DOGE":  iconBase + "74.png",
	"WBTC":  iconBase + "3717.png",
	"BTC":   iconBase + "1.png",
	"ETH":   iconBase + "1027.png",
	"WETH":  iconBase + "1027.png",
	"SOL":   iconBase + "5426.png",
	"TRX":   iconBase + "1958.png",
	"XRP":   iconBase + "52.png",
}

var (
	depositTokens = map[Network][]string{
		NetworkBTCTestnet:  {"BTC"},
		NetworkETHSepolia:  {"ETH", "USDT", "USDC"},
		NetworkBSCTestnet:  {"BNB", "USDT", "USDC", "BUSD", "MATIC", "DOGE"},
		NetworkSOLTestnet:  {"SOL"},
		NetworkTRONTestnet: {"TRX", "USDT", "USDC"},
		NetworkXRPTestnet:  {"XRP"},
	}
	withdrawTokens = map[Network][]string{
		NetworkBTCTestnet:  {"BTC"},
		NetworkETHSepolia:  {"ETH", "USDT", "USDC"},
		NetworkBSCTestnet:  {"BNB", "USDT", "USDC"},
		NetworkSOLTestnet:  {"SOL"},
		NetworkTRONTestnet: {"TRX", "USDT", "USDC"},
		NetworkXRPTestnet:  {"XRP"},
	}
)

// LookupToken returns metadata for symbol, case-insensitively.
func LookupToken(symbol string) (TokenInfo, bool) {
	info, ok := tokens[strings.ToUpper(symbol)]
	return info, ok
}

// TokenIcon returns the icon URL for symbol, or "" when none is known.
func TokenIcon(symbol string) string {
	return tokenIcons[strings.ToUpper(symbol)]
}

// DepositTokens returns the symbols that can be deposited on n.
func DepositTokens(n Network) []string { return depositTokens[n] }

// WithdrawTokens returns the symbols that can be withdrawn on n.
func WithdrawTokens(n Network) []string { return withdrawTokens[n] }

// stableCoins are priced at exactly 1 USD by policy.
var stableCoins = map[string]bool{"USDT": true, "USDC": true, "BUSD": true}

// IsStableCoin reports whether symbol is pegged at 1 USD.
func IsStableCoin(symbol string) bool {
	return stableCoins[strings.ToUpper(symbol)]
}

// PricePairs maps each priced symbol to its USDT trading pair on the price
// source. Wrapped tokens track their underlying asset.
var PricePairs = map[string]string{
	"BNB":   "BNBUSDT",
	"MATIC": "MATICUSDT",
	"DOGE":  "DOGEUSDT",
	"BTC":   "BTCUSDT",
	"WBTC":  "BTCUSDT",
	"ETH":   "ETHUSDT",
	"WETH":  "ETHUSDT",
	"SOL":   "SOLUSDT",
	"TRX":   "TRXUSDT",
	"XRP":   "XRPUSDT",
}
