package mcp

// Tool names.
const (
	ToolRequestPayment         = "crypto_request_payment"
	ToolGetPaymentStatus       = "crypto_get_payment_status"
	ToolGetUserBalance         = "crypto_get_user_balance"
	ToolGetPaymentHistory      = "crypto_get_payment_history"
	ToolListNetworks           = "crypto_list_networks"
	ToolListTokens             = "crypto_list_tokens"
	ToolGetTokenInfo           = "crypto_get_token_info"
	ToolGetTokenPrice          = "crypto_get_token_price"
	ToolGetMultiplePrices      = "crypto_get_multiple_prices"
	ToolConvertAmount          = "crypto_convert_amount"
	ToolValidateAddress        = "crypto_validate_address"
	ToolHealthCheck            = "crypto_health_check"
	ToolPlatformRequestPayment = "crypto_platform_request_payment"
	ToolPlatformGetBalance     = "crypto_platform_get_balance"
	ToolVerifyWebhook          = "crypto_verify_webhook"
)

func str(desc string) Property { return Property{Type: "string", Description: desc} }

func object(props map[string]Property, required ...string) Schema {
	if props == nil {
		props = map[string]Property{}
	}
	if required == nil {
		required = []string{}
	}
	return Schema{Type: "object", Properties: props, Required: required}
}

var authToken = str("User authentication JWT")

var flowFilter = Property{
	Type:        "string",
	Enum:        []string{"all", "deposit", "withdraw"},
	Description: "Filter: all, deposit (deposit enabled) or withdraw (withdrawal enabled)",
}

var baseCatalog = []Tool{
	{
		Name:        ToolRequestPayment,
		Description: "Create a new crypto payment request. Returns the paymentId and the payment page URL.",
		InputSchema: object(map[string]Property{"authToken": authToken}, "authToken"),
	},
	{
		Name:        ToolGetPaymentStatus,
		Description: "Look up the status of a payment.",
		InputSchema: object(map[string]Property{
			"authToken": authToken,
			"paymentId": str("Payment ID to look up"),
		}, "authToken", "paymentId"),
	},
	{
		Name:        ToolGetUserBalance,
		Description: "Get the user's current balance in USD.",
		InputSchema: object(map[string]Property{"authToken": authToken}, "authToken"),
	},
	{
		Name:        ToolGetPaymentHistory,
		Description: "List the user's payment history.",
		InputSchema: object(map[string]Property{
			"authToken": authToken,
			"page":      {Type: "number", Description: "Page number (default 1)"},
			"limit":     {Type: "number", Description: "Items per page (default 20, max 100)"},
			"status":    str("Status filter (pending, success, failed, ...)"),
		}, "authToken"),
	},
	{
		Name:        ToolListNetworks,
		Description: "List the supported blockchain networks.",
		InputSchema: object(map[string]Property{"type": flowFilter}),
	},
	{
		Name:        ToolListTokens,
		Description: "List the tokens supported on a network.",
		InputSchema: object(map[string]Property{
			"network": str("Network ID (e.g. bsc_test, eth_sepolia, tron_test)"),
			"type":    flowFilter,
		}, "network"),
	},
	{
		Name:        ToolGetTokenInfo,
		Description: "Get token details together with its current price.",
		InputSchema: object(map[string]Property{"symbol": str("Token symbol (e.g. USDT, BTC, ETH)")}, "symbol"),
	},
	{
		Name:        ToolGetTokenPrice,
		Description: "Get the current USD price of a token.",
		InputSchema: object(map[string]Property{"symbol": str("Token symbol (e.g. BTC, ETH, BNB)")}, "symbol"),
	},
	{
		Name:        ToolGetMultiplePrices,
		Description: "Get current prices for several tokens at once.",
		InputSchema: object(map[string]Property{
			"symbols": {
				Type:        "array",
				Items:       &Property{Type: "string"},
				Description: `Token symbols (e.g. ["BTC", "ETH", "BNB"])`,
			},
		}, "symbols"),
	},
	{
		Name:        ToolConvertAmount,
		Description: "Convert a token amount to USD or a USD amount to the token.",
		InputSchema: object(map[string]Property{
			"symbol": str("Token symbol"),
			"amount": {Type: "number", Description: "Amount to convert"},
			"direction": {
				Type:        "string",
				Enum:        []string{"toUsd", "fromUsd"},
				Description: "toUsd: token to USD, fromUsd: USD to token",
			},
		}, "symbol", "amount", "direction"),
	},
	{
		Name:        ToolValidateAddress,
		Description: "Check that a wallet address is well formed for a network.",
		InputSchema: object(map[string]Property{
			"address": str("Wallet address"),
			"network": str("Network ID (e.g. eth, bsc, tron)"),
		}, "address", "network"),
	},
	{
		Name:        ToolHealthCheck,
		Description: "Check connectivity to the payment API.",
		InputSchema: object(nil),
	},
	{
		Name:        ToolVerifyWebhook,
		Description: "Verify an RSA-SHA512 webhook signature from the payment platform.",
		InputSchema: object(map[string]Property{
			"signature": str("Base64 signature from the webhook header"),
			"payload":   {Type: "object", Description: "Webhook body exactly as received. A string holding JSON is verified as that JSON; any other string is verified as a JSON string literal"},
		}, "signature", "payload"),
	},
}

var platformCatalog = []Tool{
	{
		Name:        ToolPlatformRequestPayment,
		Description: "Create a payment directly on the operator platform. Returns the paymentId and the payment page URL.",
		InputSchema: object(map[string]Property{"userToken": str("Platform user token")}, "userToken"),
	},
	{
		Name:        ToolPlatformGetBalance,
		Description: "Get a user's balance directly from the operator platform.",
		InputSchema: object(map[string]Property{"userToken": str("Platform user token")}, "userToken"),
	},
}

// Catalog returns the advertised tools. The direct platform tools are only
// listed when operator credentials are configured.
func Catalog(platformConfigured bool) []Tool {
	out := make([]Tool, 0, len(baseCatalog)+len(platformCatalog))
	out = append(out, baseCatalog...)
	if platformConfigured {
		out = append(out, platformCatalog...)
	}
	return out
}

func hasTool(tools []Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
