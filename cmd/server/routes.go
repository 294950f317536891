package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"chainhub.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	profileHandler   *handlers.ProfileHandler
	operationHandler *handlers.OperationHandler
	batchHandler     *handlers.BatchHandler
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Profile, cluster and portfolio routes
		profiles := v1.Group("/profiles")
		{
			profiles.POST("", d.profileHandler.CreateProfile)
			profiles.GET("/:id", d.profileHandler.GetProfile)
			profiles.POST("/:id/accounts", d.profileHandler.AddLinkedAccount)
			profiles.PATCH("/:id/accounts/:accountId", d.profileHandler.SetLinkedAccountActive)
			profiles.POST("/:id/cluster", d.profileHandler.EnsureCluster)
			profiles.POST("/:id/cluster/rebuild", d.profileHandler.RebuildCluster)
			profiles.GET("/:id/portfolio", d.profileHandler.GetPortfolio)
			profiles.GET("/:id/gas-analysis", d.profileHandler.GetGasAnalysis)
		}

		// Single operation routes
		operations := v1.Group("/operations")
		{
			operations.POST("/transfer", d.operationHandler.BuildTransfer)
			operations.POST("/swap", d.operationHandler.BuildSwap)
			operations.GET("/:operationSetId", d.operationHandler.GetOperation)
			operations.POST("/:operationSetId/submit", d.operationHandler.SubmitOperation)
		}

		// Batch routes
		batches := v1.Group("/batches")
		{
			batches.POST("", d.batchHandler.CreateBatch)
			batches.GET("/:id", d.batchHandler.GetBatchStatus)
			batches.POST("/:id/execute", d.batchHandler.ExecuteBatch)
			batches.POST("/:id/retry", d.batchHandler.RetryBatch)
			batches.GET("/:id/failures", d.batchHandler.GetBatchFailures)
		}
	}
}
