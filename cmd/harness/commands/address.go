package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airchains-network/dualledger-harness/address"
)

var AddressCmd = &cobra.Command{
	Use:   "address [evm-or-ss58]",
	Short: "Show the cross-ledger forms of an address",
	Long: `Show the cross-ledger forms of an address. An EVM address prints the native account that
mirrors it. An SS58 address prints its account id and the truncated EVM mirror address.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		if evm, err := address.ParseEvmAddress(input); err == nil {
			mirror := address.EvmToMirroredAccountID(evm)
			text, err := address.AccountIDToTextAddress(mirror.AccountID(), address.SS58Format)
			if err != nil {
				return err
			}
			fmt.Printf("EVM Address: %s\n", evm.Common().Hex())
			fmt.Printf("Mirrored Account ID: %s\n", mirror.Hex())
			fmt.Printf("Mirrored Account: %s\n", text)
			return nil
		}

		id, err := address.TextAddressToAccountID(address.TextAddress(input))
		if err != nil {
			return fmt.Errorf("%q is neither an EVM nor an SS58 address: %v", input, err)
		}
		fmt.Printf("Address: %s\n", input)
		fmt.Printf("Account ID: %s\n", id.Hex())
		fmt.Printf("EVM Mirror Address: %s\n", address.MirroredAccountIDToEvmAddress(id).Hex())
		return nil
	},
}
