package clients

const (
	// -----------------------------
	// EVM READS
	// -----------------------------
	ErrRPCDial         = "rpc_dial_failed"
	ErrRPCCall         = "rpc_call_failed"
	ErrBalanceOfRevert = "balance_of_reverted"
	ErrBadBalanceWord  = "balance_of_bad_return_data"

	// -----------------------------
	// CORE LEDGER INFO API
	// -----------------------------
	ErrInfoRequest     = "info_request_failed"
	ErrInfoStatus      = "info_unexpected_status"
	ErrInfoDecode      = "info_response_decode_failed"
	ErrInfoBadTotal    = "info_entry_bad_total"
	ErrInfoBadEndpoint = "info_bad_endpoint_url"

	// -----------------------------
	// SHARED
	// -----------------------------
	ErrUnknownAssetRepr = "unknown_asset_representation"
)
