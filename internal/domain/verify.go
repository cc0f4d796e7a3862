package domain

// FailureReason is the closed taxonomy verification results draw from.
// External consumers match on these values; do not add open-ended strings.
type FailureReason string

const (
	ReasonValidation        FailureReason = "validation"
	ReasonHashMismatch      FailureReason = "hash_mismatch"
	ReasonSignatureMismatch FailureReason = "signature_mismatch"
	ReasonChainBreak        FailureReason = "chain_break"
	ReasonIdentityCycle     FailureReason = "identity_cycle"
	ReasonIdentityRevoked   FailureReason = "identity_revoked"
)

// VerifyResult is the outcome of an offline verification. Index carries the
// first offending entry position when the failure is positional.
type VerifyResult struct {
	Verified bool          `json:"verified"`
	Reason   FailureReason `json:"reason,omitempty"`
	Index    *int64        `json:"index"`
}

func VerifiedResult() VerifyResult {
	return VerifyResult{Verified: true}
}

func FailedResult(reason FailureReason) VerifyResult {
	return VerifyResult{Verified: false, Reason: reason}
}

func FailedResultAt(reason FailureReason, index int64) VerifyResult {
	return VerifyResult{Verified: false, Reason: reason, Index: &index}
}
