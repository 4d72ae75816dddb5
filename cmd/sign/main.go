package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/clients/go/trust"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/assoc"
)

func main() {
	keyHex := flag.String("key", "", "Hex-encoded secp256k1 private key")
	initiator := flag.String("initiator", "", "Initiator address")
	approver := flag.String("approver", "", "Approver address")
	validAt := flag.Uint64("valid-at", 0, "Validity start (unix seconds, 0 = now)")
	validUntil := flag.Uint64("valid-until", 0, "Validity end (unix seconds, 0 = unbounded)")
	interfaceID := flag.String("interface", "0x00000000", "4-byte interface id")
	data := flag.String("data", "0x", "0x-prefixed payload data")
	flag.Parse()

	if *keyHex == "" || *initiator == "" || *approver == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -key <private-key-hex> -initiator <address> -approver <address> [-valid-at N] [-valid-until N] [-interface 0x...] [-data 0x...]")
		os.Exit(1)
	}

	if *validAt == 0 {
		*validAt = uint64(time.Now().Unix())
	}

	rec, err := assoc.ParseRecord(*initiator, *approver, *validAt, *validUntil, *interfaceID, *data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid record: %v\n", err)
		os.Exit(1)
	}

	wallet, err := trust.NewLocalWallet(*keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid key: %v\n", err)
		os.Exit(1)
	}

	signer := trust.NewAssociationSigner(wallet, 10*time.Second)
	signed, err := signer.Sign(context.Background(), rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Signing failed: %v\n", err)
		os.Exit(1)
	}

	out := map[string]any{
		"initiator":   rec.Initiator.Hex(),
		"approver":    rec.Approver.Hex(),
		"validAt":     rec.ValidAt,
		"validUntil":  rec.ValidUntil,
		"interfaceId": *interfaceID,
		"data":        *data,
		"digest":      signed.Digest,
		"signature":   signed.Signature,
		"signer":      wallet.Address(),
	}
	raw, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(raw))
}
