package model

// Reason is the machine-readable outcome of a redemption attempt.
type Reason string

const (
	ReasonRedeemed           Reason = "redeemed"
	ReasonAlreadyRedeemed    Reason = "already_redeemed"
	ReasonCapacityExhausted  Reason = "capacity_exhausted"
	ReasonUnknownCode        Reason = "unknown_code"
	ReasonScoreTooLow        Reason = "score_too_low"
	ReasonInvalidChallenge   Reason = "invalid_challenge"
	ReasonIPRateLimited      Reason = "ip_rate_limited"
	ReasonFingerprintBlocked Reason = "fingerprint_blocked"

	// Not definitive: emitted by the HTTP layer for input and transient errors.
	ReasonInvalidRequest Reason = "invalid_request"
	ReasonTryAgain       Reason = "try_again"
)

// Status is the ledger's verdict for one TryConsume call.
type Status string

const (
	StatusRedeemed          Status = "redeemed"
	StatusAlreadyRedeemed   Status = "already_redeemed"
	StatusCapacityExhausted Status = "capacity_exhausted"
	StatusUnknownCode       Status = "unknown_code"
)

// Outcome is the result of an atomic consumption attempt.
// Remaining is meaningful for StatusRedeemed (read after the increment) and
// StatusCapacityExhausted (always 0).
type Outcome struct {
	Status     Status
	Remaining  int
	Capacity   int
	Redemption *Redemption
}

// Evidence is the bundle of anti-abuse signals attached to one attempt.
type Evidence struct {
	WalletAddress       string
	FingerprintHash     string
	SourceIP            string
	HumanScore          int
	ChallengeTokenValid bool
}

// Verdict is the AbuseGate decision for one piece of evidence.
type Verdict struct {
	Allowed bool
	Reason  Reason
}

// RedeemRequest is the HTTP body of POST /api/redeem. The source IP is taken
// from the connection, and the challenge token is verified server-side.
type RedeemRequest struct {
	Code            string `json:"code" binding:"required"`
	WalletAddress   string `json:"wallet_address" binding:"required"`
	FingerprintHash string `json:"fingerprint_hash" binding:"required"`
	HumanScore      int    `json:"human_score"`
	ChallengeToken  string `json:"challenge_token"`
}

// RedeemResponse is what a caller sees for one attempt.
type RedeemResponse struct {
	Success   bool   `json:"success"`
	Reason    Reason `json:"reason"`
	Message   string `json:"message"`
	Remaining *int   `json:"remaining"`
}

var reasonMessages = map[Reason]string{
	ReasonRedeemed:           "Code redeemed successfully",
	ReasonAlreadyRedeemed:    "You have already redeemed this code",
	ReasonCapacityExhausted:  "All redemption codes have been used",
	ReasonUnknownCode:        "Invalid redemption code",
	ReasonScoreTooLow:        "Insufficient verification score",
	ReasonInvalidChallenge:   "Challenge verification failed",
	ReasonIPRateLimited:      "Too many attempts from your network, slow down",
	ReasonFingerprintBlocked: "This device has already been used with another wallet",
	ReasonInvalidRequest:     "Invalid redemption request",
	ReasonTryAgain:           "Failed to redeem code. Please try again.",
}

// Message returns the user-facing text for a reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// NewRedeemResponse builds a response; remaining is nil unless provided.
func NewRedeemResponse(reason Reason, remaining *int) *RedeemResponse {
	return &RedeemResponse{
		Success:   reason == ReasonRedeemed,
		Reason:    reason,
		Message:   reason.Message(),
		Remaining: remaining,
	}
}
