package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pifp_protocol/auth"
)

var (
	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key and print its address",
		RunE:  runKeygen,
	}

	signCmd = &cobra.Command{
		Use:   "sign",
		Short: "Sign a request body and print the " + auth.SignatureHeader + " value",
		Example: `  pifp sign --key $PIFP_KEY --body deposit.json
  echo -n '{"nonce":1}' | pifp sign --key $PIFP_KEY --body -`,
		RunE: runSign,
	}
)

func initKeyCommands() {
	signCmd.Flags().String("key", "", "private key hex (defaults to $PIFP_KEY)")
	signCmd.Flags().String("body", "-", "body file, - reads stdin")
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	s, err := auth.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "private_key: %s\n", s.PrivateKeyHex())
	fmt.Fprintf(out, "public_key:  %s\n", s.PublicKeyHex())
	fmt.Fprintf(out, "address:     %s\n", s.Address())
	return nil
}

func runSign(cmd *cobra.Command, _ []string) error {
	keyHex, _ := cmd.Flags().GetString("key")
	if keyHex == "" {
		keyHex = os.Getenv("PIFP_KEY")
	}
	if keyHex == "" {
		return errors.New("no key given, pass --key or set PIFP_KEY")
	}
	s, err := auth.NewSignerFromHex(keyHex)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("body")
	var body []byte
	if path == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	sig, err := s.Sign(body)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sig)
	return nil
}
