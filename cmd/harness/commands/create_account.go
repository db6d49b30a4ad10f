package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airchains-network/dualledger-harness/keys"
)

var CreateAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Create a new native keypair and EVM wallet",
	Long: `Create a random sr25519 keypair for the native ledger and a random secp256k1 wallet for the
EVM sidechain, and print the native account that mirrors the wallet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := keys.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to create keypair: %v", err)
		}
		w, err := keys.NewRandomWallet()
		if err != nil {
			return fmt.Errorf("failed to create wallet: %v", err)
		}

		fmt.Printf("Account created successfully!\n")
		fmt.Println("\n=== Native (sr25519) ===")
		fmt.Printf("Address: %s\n", kp.Address())
		fmt.Printf("Account ID: %s\n", kp.AccountID().Hex())
		fmt.Printf("Secret URI: %s\n", kp.URI())
		fmt.Println("\n=== EVM (secp256k1) ===")
		fmt.Printf("Address: %s\n", w.Address.Common().Hex())
		fmt.Printf("Private Key: %s\n", w.PrivateKeyHex())
		fmt.Printf("Mirrored Account: %s\n", w.MirrorAddress())
		fmt.Println("\nIMPORTANT: Save the secret URI and private key in a secure place!")
		return nil
	},
}
