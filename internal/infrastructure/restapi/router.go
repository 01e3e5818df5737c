package restapi

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the cross-cutting parts of the router.
type RouterOptions struct {
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
}

// SetupRouter wires the API, the event stream and the metrics endpoint onto a Gin engine.
func SetupRouter(h *Handler, stream *EventStream, opts RouterOptions) *gin.Engine {
	router := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 || slices.Contains(opts.AllowedOrigins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/network", h.GetNetwork)

		v1.GET("/session", h.GetSession)
		v1.POST("/session/connect", h.Connect)
		v1.POST("/session/disconnect", h.Disconnect)
		v1.POST("/session/balance/refresh", h.RefreshBalance)

		v1.GET("/asks", h.ListAsks)
		v1.POST("/asks", h.CreateAsk)
		v1.POST("/asks/refresh", h.RefreshAsks)
		v1.POST("/asks/:id/fund", h.FundAsk)

		v1.GET("/investments", h.ListInvestments)
		v1.GET("/transactions/pending", h.ListPending)

		v1.POST("/tokens/mint", h.MintToken)
		v1.POST("/tokens/transfer", h.TransferToken)

		if stream != nil {
			v1.GET("/events", stream.Serve)
		}
	}

	return router
}
