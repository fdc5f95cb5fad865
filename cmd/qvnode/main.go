package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quadravote/qvnode/api"
	"github.com/quadravote/qvnode/crypto/homomorphic/bgv"
	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/metadb"
	"github.com/quadravote/qvnode/decryptor"
	"github.com/quadravote/qvnode/log"
	"github.com/quadravote/qvnode/oracle"
	"github.com/quadravote/qvnode/storage"
	"github.com/quadravote/qvnode/voting"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output)
	log.Infow("starting qvnode", "version", Version)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	database, err := metadb.New(cfg.DBType, filepath.Join(cfg.Datadir, cfg.DBType))
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}

	ks, signKey, err := loadOrGenerateKeys(database)
	if err != nil {
		log.Fatalf("could not load key material: %v", err)
	}
	scheme, err := bgv.New(ks)
	if err != nil {
		log.Fatalf("could not initialize homomorphic scheme: %v", err)
	}
	dec, err := bgv.NewDecryptor(ks)
	if err != nil {
		log.Fatalf("could not initialize decryptor: %v", err)
	}

	stg := storage.New(database, scheme)
	engine := voting.NewEngine(stg, oracle.LogTransferor{}, cfg.Voting.MaxVotes, cfg.Voting.Period)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The in-process authority plays the external decryption mechanism:
	// its callbacks flow into the coordinator exactly like remote ones.
	var coord *decryptor.Coordinator
	authority := oracle.NewAuthority(dec, signKey, func(cb *oracle.Callback) {
		if err := coord.Fulfill(cb); err != nil {
			log.Errorw(err, fmt.Sprintf("could not apply decryption callback %s", cb.RequestID))
		}
	})
	verifier := oracle.NewVerifier(authority.Address())
	coord = decryptor.New(stg, authority, verifier)
	coord.OnDecrypted(engine.EmitTallyDecrypted)

	authority.Start(ctx)
	coord.Start(ctx, cfg.Voting.MonitorInterval)
	log.Infow("decryption authority ready", "address", authority.Address().Hex(), "scheme", scheme.Name())

	go func() {
		for ev := range engine.Events() {
			log.Debugw("ledger event", "kind", string(ev.Kind), "proposalId", uint64(ev.ProposalID))
		}
	}()

	if _, err := api.New(&api.APIConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		Engine:      engine,
		Coordinator: coord,
	}); err != nil {
		log.Fatalf("could not start API: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())

	coord.Close()
	authority.Close()
	stg.Close()
}

// loadOrGenerateKeys restores the node's key material from the database, or
// generates and persists fresh keys on first boot.
func loadOrGenerateKeys(database db.Database) (*bgv.KeySet, *ecdsa.PrivateKey, error) {
	stored, err := storage.LoadSchemeKeys(database)
	switch {
	case err == nil:
		if stored.Name != bgv.SchemeName {
			return nil, nil, fmt.Errorf("stored keys belong to scheme %q, expected %q", stored.Name, bgv.SchemeName)
		}
		ks, err := bgv.UnmarshalKeySet(stored.SecretKey, stored.PublicKey, stored.RelinKey)
		if err != nil {
			return nil, nil, fmt.Errorf("unmarshal scheme keys: %w", err)
		}
		signKey, err := ethcrypto.ToECDSA(stored.SignKey)
		if err != nil {
			return nil, nil, fmt.Errorf("unmarshal signing key: %w", err)
		}
		return ks, signKey, nil
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return nil, nil, err
	}

	log.Infow("generating key material, this may take a moment")
	ks, err := bgv.GenerateKeySet()
	if err != nil {
		return nil, nil, fmt.Errorf("generate scheme keys: %w", err)
	}
	signKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate signing key: %w", err)
	}
	sk, pk, rlk, err := ks.Marshal()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal scheme keys: %w", err)
	}
	if err := storage.StoreSchemeKeys(database, &storage.SchemeKeys{
		Name:      bgv.SchemeName,
		SecretKey: sk,
		PublicKey: pk,
		RelinKey:  rlk,
		SignKey:   ethcrypto.FromECDSA(signKey),
	}); err != nil {
		return nil, nil, fmt.Errorf("persist key material: %w", err)
	}
	return ks, signKey, nil
}
