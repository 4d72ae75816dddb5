package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	agentID := flag.String("agent", "", "On-chain agent id to bind the session package to")
	chainID := flag.Int64("chain", 1, "Chain id")
	out := flag.String("out", "", "Write a session package JSON file instead of printing the key")
	flag.Parse()

	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}

	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	if *out == "" {
		fmt.Printf("Address:     %s\n", address)
		fmt.Printf("Private key: 0x%s\n", privHex)
		return
	}

	pkg := map[string]any{
		"agentId":    *agentID,
		"chainId":    *chainID,
		"privateKey": "0x" + privHex,
		"address":    address,
	}
	raw, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(*out, raw, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote session package for %s to %s\n", address, *out)
}
