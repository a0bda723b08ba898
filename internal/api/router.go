package api

import (
	"net/http"
	"redemption-gate/internal/service"
	"redemption-gate/internal/verify"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Services bundles what the handlers depend on.
type Services struct {
	Admission *service.AdmissionService
	Codes     *service.CodeService
	Verifier  verify.ChallengeVerifier
}

// Options carries router-level settings.
type Options struct {
	AdminToken             string
	WalletConnectProjectID string
	TrustedProxies         []string
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(svc Services, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		log.WithError(err).Warn("invalid trusted proxies, ignoring forwarded headers")
		_ = router.SetTrustedProxies(nil)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/redeem", redeemHandler(svc.Admission, svc.Verifier))
		api.GET("/codes/:code/remaining", remainingHandler(svc.Codes))
		api.GET("/config/wallet-connect", walletConnectHandler(opts.WalletConnectProjectID))
	}

	admin := api.Group("", adminAuth(opts.AdminToken))
	{
		admin.POST("/codes", createCodeHandler(svc.Codes))
		admin.GET("/codes/:code", getCodeDetailsHandler(svc.Codes))
	}

	return router
}
