package server

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/log"
	"github.com/nftlane/nft-bridge-service/metrics"
)

// BridgeServer exposes the synced bridge state over a REST API.
type BridgeServer struct {
	cfg     Config
	storage storageInterface
}

// NewServer creates a new bridge API server.
func NewServer(cfg Config, storage storageInterface) *BridgeServer {
	if cfg.DefaultPageLimit == 0 {
		cfg.DefaultPageLimit = 25
	}
	if cfg.MaxPageLimit == 0 {
		cfg.MaxPageLimit = 100
	}
	return &BridgeServer{
		cfg:     cfg,
		storage: storage,
	}
}

// Start runs the HTTP server. It blocks until the listener fails.
func (s *BridgeServer) Start() error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         ":" + s.cfg.HTTPPort,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout.Duration,
		WriteTimeout: s.cfg.WriteTimeout.Duration,
	}
	log.Infof("bridge API listening on port %s", s.cfg.HTTPPort)
	return srv.ListenAndServe()
}

// Handler builds the route table. Exposed separately so tests can drive
// it without a listener.
func (s *BridgeServer) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestMetrics())

	router.GET("/healthz", s.health)
	router.GET("/requests", s.listRequestsByOwner)
	router.GET("/requests/:hash", s.getRequest)
	router.GET("/collections/:address", s.getCollection)
	return router
}

// requestMetrics records count and latency per API method.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		method := c.FullPath()
		if method == "" {
			method = "unmatched"
		}
		isSuccess := c.Writer.Status() < http.StatusInternalServerError
		metrics.RecordRequest(method, isSuccess)
		metrics.RecordRequestLatency(method, time.Since(start), isSuccess)
	}
}

func (s *BridgeServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *BridgeServer) getRequest(c *gin.Context) {
	hashParam := c.Param("hash")
	if len(common.FromHex(hashParam)) != common.HashLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request hash"})
		return
	}
	hash := common.HexToHash(hashParam)

	direction := etherman.RequestDirection(c.DefaultQuery("direction", string(etherman.DirectionDeposit)))
	if direction != etherman.DirectionDeposit && direction != etherman.DirectionWithdrawal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid direction"})
		return
	}

	request, err := s.storage.GetBridgeRequest(c.Request.Context(), hash, direction, nil)
	if err != nil {
		s.notFoundOrError(c, err, "request not found")
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(request))
}

func (s *BridgeServer) listRequestsByOwner(c *gin.Context) {
	ownerParam := c.Query("owner")
	if !common.IsHexAddress(ownerParam) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner address"})
		return
	}
	limit, offset, ok := s.pagination(c)
	if !ok {
		return
	}

	requests, err := s.storage.GetBridgeRequestsByOwner(c.Request.Context(), common.HexToAddress(ownerParam), limit, offset, nil)
	if err != nil {
		log.Errorf("error listing requests by owner %s: %v", ownerParam, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, toRequestResponse(request))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out, "limit": limit, "offset": offset})
}

func (s *BridgeServer) getCollection(c *gin.Context) {
	addressParam := c.Param("address")

	var (
		pair *etherman.CollectionPair
		err  error
	)
	if common.IsHexAddress(addressParam) {
		pair, err = s.storage.GetCollectionPairByL1(c.Request.Context(), common.HexToAddress(addressParam), nil)
	} else if l2, ok := new(big.Int).SetString(addressParam, 0); ok && l2.Sign() >= 0 {
		// rollup-side addresses are scalars, accepted in decimal or 0x form
		pair, err = s.storage.GetCollectionPairByL2(c.Request.Context(), l2, nil)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collection address"})
		return
	}
	if err != nil {
		s.notFoundOrError(c, err, "collection not found")
		return
	}
	c.JSON(http.StatusOK, toCollectionResponse(pair))
}

func (s *BridgeServer) pagination(c *gin.Context) (uint, uint, bool) {
	limit := s.cfg.DefaultPageLimit
	if v := c.Query("limit"); v != "" {
		parsed, ok := parseUint(v)
		if !ok || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return 0, 0, false
		}
		limit = parsed
	}
	if limit > s.cfg.MaxPageLimit {
		limit = s.cfg.MaxPageLimit
	}
	var offset uint
	if v := c.Query("offset"); v != "" {
		parsed, ok := parseUint(v)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

func (s *BridgeServer) notFoundOrError(c *gin.Context, err error, msg string) {
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
		return
	}
	log.Errorf("storage error serving %s: %v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
