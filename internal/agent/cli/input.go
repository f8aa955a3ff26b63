package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PassphraseEnvVar supplies the key store passphrase non-interactively.
const PassphraseEnvVar = "DEVICEGUARD_KEYSTORE_PASSPHRASE"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetPassword prints a prompt to w and reads a passphrase from the terminal
// without echo. The caller should wipe the result when done.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// keyStorePassphrase returns the passphrase from PassphraseEnvVar, or asks
// for it on the terminal.
func keyStorePassphrase(w io.Writer) ([]byte, error) {
	if v := os.Getenv(PassphraseEnvVar); v != "" {
		return []byte(v), nil
	}
	return GetPassword(w, "Key store passphrase: ")
}
