package main

import (
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlane/nft-bridge-service/claimtxman"
	"github.com/nftlane/nft-bridge-service/collection"
	"github.com/nftlane/nft-bridge-service/config"
	"github.com/nftlane/nft-bridge-service/db"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/log"
	"github.com/nftlane/nft-bridge-service/metrics"
	"github.com/nftlane/nft-bridge-service/server"
	"github.com/nftlane/nft-bridge-service/synchronizer"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	configFilePath := ctx.String(flagCfg)
	c, err := config.Load(configFilePath)
	if err != nil {
		return err
	}
	setupLog(c.Log)
	err = db.RunMigrations(c.SyncDB)
	if err != nil {
		log.Error(err)
		return err
	}

	storage, err := db.NewStorage(c.SyncDB)
	if err != nil {
		log.Error(err)
		return err
	}

	l1Client, l2Client, err := newEthermans(c.Etherman)
	if err != nil {
		log.Error(err)
		return err
	}

	// Deployments run on the rollup; metadata reads come from the
	// origin chain where the source contracts live.
	deployer := collection.NewDeployer(l2Client)
	extractor := collection.NewExtractor(l1Client)

	chSynced := make(chan uint, 2) //nolint:gomnd
	chWithdrawAuto := make(chan etherman.RequestEvent, 100)

	go runSynchronizer(storage, l1Client, deployer, extractor, c.Etherman.L2BridgeAddr, nil, chSynced, c.Synchronizer)

	// The rollup side starts from its own genesis and feeds the
	// withdraw-auto lane instead of deploying collections.
	l2Cfg := c.Synchronizer
	l2Cfg.GenBlockNumber = 0
	go runSynchronizer(storage, l2Client, deployer, extractor, c.Etherman.L2BridgeAddr, chWithdrawAuto, chSynced, l2Cfg)

	if c.ClaimTxManager.Enabled {
		claimTxManager, err := claimtxman.NewClaimTxManager(c.ClaimTxManager, chWithdrawAuto, chSynced, l1Client, l2Client.GetNetworkID(), storage)
		if err != nil {
			log.Error(err)
			return err
		}
		go claimTxManager.Start()
	} else {
		log.Warn("claim tx manager disabled, withdraw-auto requests will not be completed automatically")
		go func() {
			for {
				<-chWithdrawAuto
			}
		}()
	}

	go func() {
		if err := server.NewServer(c.BridgeServer, storage).Start(); err != nil {
			log.Fatalf("bridge API server stopped: %v", err)
		}
	}()

	if c.Metrics.Enabled {
		go metrics.StartMetricsHttpServer(c.Metrics)
	}

	// Wait for an in interrupt.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch

	return nil
}

func setupLog(c log.Config) {
	log.Init(c)
}

func newEthermans(cfg etherman.Config) (*etherman.Client, *etherman.Client, error) {
	l1Client, err := etherman.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	l2Client, err := etherman.NewL2Client(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l1Client, l2Client, nil
}

func runSynchronizer(storage db.Storage, client *etherman.Client, deployer *collection.Deployer, extractor *collection.Extractor, controller common.Address, chWithdrawAuto chan etherman.RequestEvent, chSynced chan uint, cfg synchronizer.Config) {
	sy, err := synchronizer.NewSynchronizer(storage, client, deployer, extractor, controller, chWithdrawAuto, chSynced, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := sy.Sync(); err != nil {
		log.Fatal(err)
	}
}
