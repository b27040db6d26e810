package rpc

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/btcsuite/btcd/rpcclient"

	"github.com/thanhnp/coin-tracker/internal/config"
	"github.com/thanhnp/coin-tracker/pkg/semver"
)

// Compatible btcd JSON-RPC API versions
var compatibleChainServerAPIs = []semver.Semver{
	semver.NewSemver(1, 0, 0),
	semver.NewSemver(2, 0, 0),
	semver.NewSemver(3, 0, 0),
	semver.NewSemver(4, 0, 0),
	semver.NewSemver(5, 0, 0),
	semver.NewSemver(6, 0, 0),
	semver.NewSemver(7, 0, 0),
	semver.NewSemver(8, 0, 0),
}

// NewBTCClient connects to a bitcoin node. In WebSocket mode (btcd) the
// node's JSON-RPC API version is checked; HTTP POST mode (bitcoind) skips it.
// searchrawtransactions requires the node to run with an address index.
func NewBTCClient(cfg *config.ChainConfig, logger *slog.Logger) (*rpcclient.Client, error) {
	var certs []byte
	var err error

	if !cfg.DisableTLS && cfg.Cert != "" {
		certs, err = os.ReadFile(cfg.Cert)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate: %w", err)
		}
	}

	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		Certificates: certs,
		DisableTLS:   cfg.DisableTLS,
	}
	if cfg.HTTPMode {
		connCfg.HTTPPostMode = true
	} else {
		connCfg.Endpoint = "ws"
	}

	logger.Info("connecting to bitcoin node", "host", cfg.Host, "user", cfg.User,
		"tls", !cfg.DisableTLS, "http_mode", cfg.HTTPMode)

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}
	if cfg.HTTPMode {
		return client, nil
	}

	nodeVer, err := nodeAPIVersion(client)
	if err != nil {
		client.Shutdown()
		return nil, err
	}
	if !semver.AnyCompatible(compatibleChainServerAPIs, nodeVer) {
		client.Shutdown()
		return nil, fmt.Errorf("node JSON-RPC server does not have a compatible API version: "+
			"advertises %v but requires one of %v", nodeVer, compatibleChainServerAPIs)
	}
	logger.Info("connected to bitcoin node", "api_version", nodeVer.String())
	return client, nil
}

func nodeAPIVersion(client *rpcclient.Client) (semver.Semver, error) {
	var nodeVer semver.Semver
	ver, err := client.Version()
	if err != nil {
		return nodeVer, fmt.Errorf("unable to get node RPC version: %w", err)
	}
	btcdVer, ok := ver["btcdjsonrpcapi"]
	if !ok {
		return nodeVer, fmt.Errorf("node did not report a btcdjsonrpcapi version")
	}
	return semver.NewSemver(btcdVer.Major, btcdVer.Minor, btcdVer.Patch), nil
}
