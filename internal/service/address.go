package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// AddressCheck is the outcome of validating an address for a network.
type AddressCheck struct {
	Address string `json:"address"`
	Network string `json:"network"`
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason"`
}

var (
	btcMainnet = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$|^bc1[ac-hj-np-z02-9]{39,59}$`)
	btcTestnet = regexp.MustCompile(`^[mn2][a-km-zA-HJ-NP-Z1-9]{25,34}$|^tb1[ac-hj-np-z02-9]{39,59}$`)
	tronAddr   = regexp.MustCompile(`^T[a-km-zA-HJ-NP-Z1-9]{33}$`)
	solAddr    = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	xrpAddr    = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)
)

// isEVMAddress accepts only 0x-prefixed 20-byte hex. Checksums are not
// enforced.
func isEVMAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

var addressValidators = map[domain.Network]func(string) bool{
	domain.NetworkETH:         isEVMAddress,
	domain.NetworkETHSepolia:  isEVMAddress,
	domain.NetworkBSC:         isEVMAddress,
	domain.NetworkBSCTestnet:  isEVMAddress,
	domain.NetworkBTC:         btcMainnet.MatchString,
	domain.NetworkBTCTestnet:  btcTestnet.MatchString,
	domain.NetworkTRON:        tronAddr.MatchString,
	domain.NetworkTRONTestnet: tronAddr.MatchString,
	domain.NetworkSOL:         solAddr.MatchString,
	domain.NetworkSOLTestnet:  solAddr.MatchString,
	domain.NetworkXRP:         xrpAddr.MatchString,
	domain.NetworkXRPTestnet:  xrpAddr.MatchString,
}

// ValidateAddress checks the address format for network. An unknown network
// is reported as invalid rather than as an error.
func ValidateAddress(address, network string) AddressCheck {
	out := AddressCheck{Address: address, Network: network}

	valid, ok := addressValidators[domain.Network(network)]
	if !ok {
		out.Reason = fmt.Sprintf("Unknown network: %s", network)
		return out
	}

	out.Valid = valid(address)
	if out.Valid {
		out.Reason = "Address format is valid"
	} else {
		out.Reason = "Invalid address format"
	}
	return out
}
