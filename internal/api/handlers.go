package api

import (
	"errors"
	"net/http"
	"redemption-gate/internal/model"
	"redemption-gate/internal/service"
	"redemption-gate/internal/verify"
	apperrors "redemption-gate/pkg/errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const retryAfterSeconds = "1"

var reasonStatus = map[model.Reason]int{
	model.ReasonRedeemed:           http.StatusOK,
	model.ReasonAlreadyRedeemed:    http.StatusConflict,
	model.ReasonCapacityExhausted:  http.StatusGone,
	model.ReasonUnknownCode:        http.StatusNotFound,
	model.ReasonScoreTooLow:        http.StatusForbidden,
	model.ReasonInvalidChallenge:   http.StatusForbidden,
	model.ReasonIPRateLimited:      http.StatusForbidden,
	model.ReasonFingerprintBlocked: http.StatusForbidden,
	model.ReasonInvalidRequest:     http.StatusBadRequest,
	model.ReasonTryAgain:           http.StatusServiceUnavailable,
}

func statusFor(reason model.Reason) int {
	if status, ok := reasonStatus[reason]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// redeemHandler handles POST /api/redeem
func redeemHandler(admission *service.AdmissionService, verifier verify.ChallengeVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.RedeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.NewRedeemResponse(model.ReasonInvalidRequest, nil))
			return
		}

		// Malformed input is rejected before the single-use challenge
		// token is spent.
		code, err := service.NormalizeCode(req.Code)
		if err != nil {
			writeRedeemError(c, err)
			return
		}
		ev, err := service.NormalizeEvidence(model.Evidence{
			WalletAddress:   req.WalletAddress,
			FingerprintHash: req.FingerprintHash,
			SourceIP:        c.ClientIP(),
			HumanScore:      req.HumanScore,
		})
		if err != nil {
			writeRedeemError(c, err)
			return
		}

		ctx := c.Request.Context()
		ev.ChallengeTokenValid, err = verifier.Verify(ctx, req.ChallengeToken, ev.SourceIP)
		if err != nil {
			writeRedeemError(c, err)
			return
		}

		resp, err := admission.Redeem(ctx, code, ev)
		if err != nil {
			writeRedeemError(c, err)
			return
		}

		c.JSON(statusFor(resp.Reason), resp)
	}
}

func writeRedeemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		resp := model.NewRedeemResponse(model.ReasonInvalidRequest, nil)
		resp.Message = err.Error()
		c.JSON(http.StatusBadRequest, resp)
	case apperrors.IsTransient(err):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, model.NewRedeemResponse(model.ReasonTryAgain, nil))
	default:
		log.WithError(err).Error("redeem failed")
		c.JSON(http.StatusInternalServerError, model.NewRedeemResponse(model.ReasonTryAgain, nil))
	}
}

// remainingHandler handles GET /api/codes/:code/remaining
func remainingHandler(codes *service.CodeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		remaining, err := codes.Remaining(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeCodeError(c, err, "failed to get remaining count")
			return
		}
		c.JSON(http.StatusOK, remaining)
	}
}

// createCodeHandler handles POST /api/codes
func createCodeHandler(codes *service.CodeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		code, err := codes.CreateCode(c.Request.Context(), &req)
		if err != nil {
			writeCodeError(c, err, "failed to create code")
			return
		}

		c.JSON(http.StatusCreated, code)
	}
}

// getCodeDetailsHandler handles GET /api/codes/:code
func getCodeDetailsHandler(codes *service.CodeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		details, err := codes.GetCodeDetails(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeCodeError(c, err, "failed to get code details")
			return
		}
		c.JSON(http.StatusOK, details)
	}
}

func writeCodeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
	case errors.Is(err, apperrors.ErrCodeAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "code already exists"})
	case errors.Is(err, apperrors.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsTransient(err):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fallback})
	default:
		log.WithError(err).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// walletConnectHandler handles GET /api/config/wallet-connect
func walletConnectHandler(projectID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if projectID == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "WalletConnect project id is not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projectId": projectID})
	}
}
