package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeTokenReadFailed          Code = "TOKEN_READ_FAILED"
	CodeTxSubmitFailed           Code = "TX_SUBMIT_FAILED"
	CodeTxReceiptTimeout         Code = "TX_RECEIPT_TIMEOUT"
	CodeSignatureFailed          Code = "SIGNATURE_FAILED"
	CodeInvalidPrivateKey        Code = "INVALID_PRIVATE_KEY"
)

// Sweep pipeline
const (
	CodeNoWallet         Code = "SWEEP_NO_WALLET"
	CodeInvalidRequest   Code = "SWEEP_INVALID_REQUEST"
	CodeSweepInProgress  Code = "SWEEP_IN_PROGRESS"
	CodeQuoteNoLiquidity Code = "QUOTE_NO_LIQUIDITY"
	CodeQuoteFailed      Code = "QUOTE_FAILED"
	CodeQuoteDecode      Code = "QUOTE_DECODE_FAILED"
	CodeInvalidQuote     Code = "INVALID_QUOTE"
	CodeApprovalFailed   Code = "APPROVAL_FAILED"
	CodeAmountInvalid    Code = "INVALID_AMOUNT"
	CodeUnknownTarget    Code = "UNKNOWN_TARGET_TOKEN"
)

// Denylist and holdings
const (
	CodeDenylistPersist Code = "DENYLIST_PERSIST_FAILED"
	CodeDenylistLoad    Code = "DENYLIST_LOAD_FAILED"
	CodeHoldingsFailed  Code = "HOLDINGS_FETCH_FAILED"
)

// Circuit breaker errors
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
