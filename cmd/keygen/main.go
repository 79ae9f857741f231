package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"seller-gateway/internal/services/auth"
)

// keygen generates the network participant key material: an ed25519
// signing pair and an X25519 encryption pair, base64 encoded the way the
// registry expects them. With -out, the signing keys are also written to
// files loadable via PROTOCOL_PRIVATE_KEY_PATH / PROTOCOL_PUBLIC_KEY_PATH.
func main() {
	outDir := flag.String("out", "", "directory to write signing_private.key and signing_public.key")
	flag.Parse()

	signingPublic, signingPrivate, err := auth.GenerateSigningKeyPair()
	if err != nil {
		log.Fatalf("failed to generate signing key pair: %v", err)
	}

	encryptionPublic, encryptionPrivate, err := auth.GenerateEncryptionKeyPair()
	if err != nil {
		log.Fatalf("failed to generate encryption key pair: %v", err)
	}

	fmt.Println("Signing public key:    ", signingPublic)
	fmt.Println("Signing private key:   ", signingPrivate)
	fmt.Println("Encryption public key: ", encryptionPublic)
	fmt.Println("Encryption private key:", encryptionPrivate)

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o700); err != nil {
			log.Fatalf("failed to create output directory: %v", err)
		}
		privatePath := *outDir + "/signing_private.key"
		publicPath := *outDir + "/signing_public.key"
		if err := os.WriteFile(privatePath, []byte(signingPrivate), 0o600); err != nil {
			log.Fatalf("failed to write private key: %v", err)
		}
		if err := os.WriteFile(publicPath, []byte(signingPublic), 0o644); err != nil {
			log.Fatalf("failed to write public key: %v", err)
		}
		fmt.Println("Signing keys written to", *outDir)
	}
}
