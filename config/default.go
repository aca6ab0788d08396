package config

// DefaultValues is the default configuration
const DefaultValues = `
[Log]
Environment = "development"
Level = "debug"
Outputs = ["stdout"]

[SyncDB]
Database = "postgres"
User = "test_user"
Password = "test_password"
Name = "test_db"
Host = "nftlane-bridge-db"
Port = "5432"
MaxConns = 20

[Etherman]
L1URL = "http://localhost:8545"
L2URL = "http://localhost:8123"
L1BridgeAddr = "0x60627AC8Ba44F4438186B4bCD5F1cb5E794e19fe"
L2BridgeAddr = "0xd0a3d58d135e2ee795dFB26ec150D339394254B9"
	[Etherman.PrivateKey]
	Path = "./test/test.keystore"
	Password = "testonly"

[Synchronizer]
SyncInterval = "2s"
SyncChunkSize = 100
GenBlockNumber = 1
CollectionTemplate = "0x0000000000000000000000000000000000000000000000000000000000000001"

[ClaimTxManager]
Enabled = true
FrequencyToMonitorTxs = "1s"
RetryInterval = "1s"
RetryNumber = 10

[BridgeServer]
HTTPPort = "8080"
ReadTimeout = "10s"
WriteTimeout = "10s"
DefaultPageLimit = 25
MaxPageLimit = 100

[Metrics]
Enabled = false
Port = "9090"
`
