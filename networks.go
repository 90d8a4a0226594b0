package x402

import "fmt"

// Network identifiers used in payment terms and wire credentials.
const (
	NetworkCronosMainnet = "cronos-mainnet"
	NetworkCronosTestnet = "cronos-testnet"
)

// NetworkProfile bundles everything network-specific the payment path needs:
// the chain id and EIP-712 domain parameters the verifying contract expects,
// and the asset the payments are denominated in. Profiles are immutable
// values; construct one at startup and pass it around.
//
// The domain name and version are deployment constants tied to the verifying
// contract. They are carried here as configuration rather than hardcoded in
// the signer, since a contract migration would change them.
type NetworkProfile struct {
	// Network is the network identifier (e.g. "cronos-testnet").
	Network string

	// ChainID is the EIP-155 chain id.
	ChainID int64

	// RPCURL is the JSON-RPC endpoint for the network.
	RPCURL string

	// ExplorerURL is the block explorer base URL.
	ExplorerURL string

	// AssetAddress is the EIP-3009 capable token contract.
	AssetAddress string

	// AssetDecimals is the token's decimal count (6 for USDC variants).
	AssetDecimals uint8

	// DomainName is the EIP-712 domain "name" the token contract verifies
	// against. A mismatch produces a syntactically valid signature the
	// verifier rejects, with no local detection possible.
	DomainName string

	// DomainVersion is the EIP-712 domain "version".
	DomainVersion string
}

// Predefined network profiles.
//
// Domain parameters follow the official Cronos x402 documentation: the
// bridged USDC contracts verify against name "Bridged USDC (Stargate)",
// version "1" — not the "USD Coin"/"2" pair native Circle deployments use.
var (
	// CronosMainnet is the configuration for Cronos mainnet with
	// Stargate-bridged USDC.e.
	CronosMainnet = NetworkProfile{
		Network:       NetworkCronosMainnet,
		ChainID:       25,
		RPCURL:        "https://evm.cronos.org",
		ExplorerURL:   "https://explorer.cronos.org",
		AssetAddress:  "0xf951eC28187D9E5Ca673Da8FE6757E6f0Be5F77C",
		AssetDecimals: 6,
		DomainName:    "Bridged USDC (Stargate)",
		DomainVersion: "1",
	}

	// CronosTestnet is the configuration for Cronos testnet with devUSDC.e.
	CronosTestnet = NetworkProfile{
		Network:       NetworkCronosTestnet,
		ChainID:       338,
		RPCURL:        "https://evm-t3.cronos.org",
		ExplorerURL:   "https://explorer.cronos.org/testnet",
		AssetAddress:  "0xc01efAaF7C5C61bEbFAeb358E1161b537b8bC0e0",
		AssetDecimals: 6,
		DomainName:    "Bridged USDC (Stargate)",
		DomainVersion: "1",
	}
)

// ProfileFor resolves a network selector to its profile. It accepts the
// short selectors "mainnet" and "testnet" as well as the full network
// identifiers.
func ProfileFor(selector string) (NetworkProfile, error) {
	switch selector {
	case "mainnet", NetworkCronosMainnet:
		return CronosMainnet, nil
	case "testnet", NetworkCronosTestnet:
		return CronosTestnet, nil
	default:
		return NetworkProfile{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, selector)
	}
}
