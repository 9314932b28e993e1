package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeTokenReadFailed:          "Failed to read token metadata",
	CodeTxSubmitFailed:           "Failed to submit transaction",
	CodeTxReceiptTimeout:         "Timed out waiting for transaction receipt",
	CodeSignatureFailed:          "Failed to sign typed data",
	CodeInvalidPrivateKey:        "Invalid private key",

	CodeNoWallet:         "No wallet session available",
	CodeInvalidRequest:   "Invalid sweep request",
	CodeSweepInProgress:  "A sweep is already running",
	CodeQuoteNoLiquidity: "No liquidity available for token",
	CodeQuoteFailed:      "Quote request failed",
	CodeQuoteDecode:      "Failed to decode quote response",
	CodeInvalidQuote:     "Invalid quote data",
	CodeApprovalFailed:   "Token approval failed",
	CodeAmountInvalid:    "Invalid token amount",
	CodeUnknownTarget:    "Unknown target token",

	CodeDenylistPersist: "Failed to persist denylist entry",
	CodeDenylistLoad:    "Failed to load denylist",
	CodeHoldingsFailed:  "Failed to fetch holdings",

	CodeCircuitOpen: "Circuit breaker is open",
}
