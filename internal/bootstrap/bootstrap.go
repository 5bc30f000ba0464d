// Package bootstrap assembles the ledger and its collaborators from settings
// for the executables under cmd/.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"omnivault/internal/ledger"
	"omnivault/internal/storage"
	"omnivault/internal/storage/gormstore"
	"omnivault/internal/storage/memstore"
	"omnivault/pkg/config"
	ovsolana "omnivault/pkg/solana"
	"omnivault/pkg/transport"
)

// OpenStore returns the store selected by s.Storage. PostgreSQL failures
// are fatal, as in config.InitDB.
func OpenStore(s config.Settings) storage.Store {
	if s.Storage == config.StorageMemory {
		log.Warn("Using in-memory storage, state is lost on exit")
		return memstore.New()
	}
	return gormstore.New(config.InitDB(s.Database))
}

// NewTransferer returns nil for custody mode, which makes the ledger book
// transfers only, or an on-chain settling transferer for spl mode.
func NewTransferer(s config.Settings) (ledger.Transferer, error) {
	if s.Solana.TransferMode != config.TransferSPL {
		return nil, nil
	}
	mint, err := solana.PublicKeyFromBase58(s.Solana.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", s.Solana.Mint, err)
	}
	signer, err := ovsolana.NewKeyManager(s.Keystore.Dir).LoadSigner(s.Keystore.Custody, s.Keystore.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to load custody signer: %w", err)
	}
	sender := ovsolana.NewTokenSender(rpc.New(s.Solana.RPC), mint, s.Solana.TransferRPS, signer)
	log.WithFields(log.Fields{
		"custody": signer.PublicKey().String(),
		"mint":    mint.String(),
		"rpc":     s.Solana.RPC,
	}).Info("On-chain settlement enabled")
	return ledger.ChainTransferer{Sender: sender, Log: log.WithField("component", "settlement")}, nil
}

// NewBalanceReader returns the custody balance reader for spl mode, or nil
// in custody mode.
func NewBalanceReader(s config.Settings) (*ovsolana.BalanceReader, error) {
	if s.Solana.TransferMode != config.TransferSPL {
		return nil, nil
	}
	mint, err := solana.PublicKeyFromBase58(s.Solana.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", s.Solana.Mint, err)
	}
	return ovsolana.NewBalanceReader(rpc.New(s.Solana.RPC), mint), nil
}

// NewLedger opens the store and builds the ledger of s.
func NewLedger(s config.Settings) (*ledger.Ledger, error) {
	transferer, err := NewTransferer(s)
	if err != nil {
		return nil, err
	}
	return ledger.New(OpenStore(s), transferer, ledger.WithLogger(log.WithField("component", "ledger")))
}

// NewSender returns the outbound message sender, or nil when conn is nil.
// Messages are signed as the vault store address.
func NewSender(s config.Settings, conn *amqp.Connection, l *ledger.Ledger) (*transport.Sender, error) {
	if conn == nil {
		return nil, nil
	}
	pub, err := config.NewPublisher(conn)
	if err != nil {
		return nil, err
	}
	self, err := storage.ParseAddress(l.VaultKey())
	if err != nil {
		return nil, err
	}
	sender := transport.NewSender(pub, s.RabbitMQ.OutboundQueue, s.Solana.LocalChainID, self)
	sender.ResumeAfter(uint64(time.Now().UnixMicro()))
	return sender, nil
}
