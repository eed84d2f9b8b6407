package main

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"illustrator/pkg/config"
)

// EnvPassword holds the secrets password for non-interactive startup.
const EnvPassword = "ILLUSTRATOR_PASSWORD"

// credentialNames are the secrets -init-secrets copies from the environment.
var credentialNames = []string{ //nolint:gochecknoglobals // fixed list
	config.EnvAnthropicAPIKey,
	config.EnvOpenAIAPIKey,
	config.EnvGoogleAPIKey,
	config.EnvOllamaHost,
}

// handleSecretsDecryption loads the encrypted secrets file into memory when present.
// The password comes from ILLUSTRATOR_PASSWORD or an interactive prompt.
func handleSecretsDecryption(projectDir string) error {
	if !config.SecretsFileExists(projectDir) {
		return nil
	}
	password := os.Getenv(EnvPassword)
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
			return fmt.Errorf("secrets file present but %s is not set and stdin is not a terminal", EnvPassword)
		}
		fmt.Print("🔐 Password for encrypted secrets: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
		clear(raw)
	}

	secrets, err := config.DecryptSecretsFile(projectDir, password)
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	fmt.Printf("✅ Loaded %d secrets\n", len(secrets))
	return nil
}

// initSecrets encrypts the provider credentials found in the environment.
func initSecrets(projectDir string) error {
	secrets := make(map[string]string)
	for _, name := range credentialNames {
		if v := os.Getenv(name); v != "" {
			secrets[name] = v
		}
	}
	if len(secrets) == 0 {
		return fmt.Errorf("none of %v are set", credentialNames)
	}

	password, err := promptForPassword()
	if err != nil {
		return err
	}
	if err := config.EncryptSecretsFile(projectDir, password, secrets); err != nil {
		return fmt.Errorf("failed to encrypt secrets: %w", err)
	}
	fmt.Printf("✅ %d credentials saved to %s/secrets.json.enc (file permissions: 0600)\n", len(secrets), config.ProjectConfigDir)
	fmt.Printf("💡 Set %s for passwordless startup.\n", EnvPassword)
	return nil
}

// promptForPassword prompts for a password with confirmation.
func promptForPassword() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Print("Enter a password for the secrets file: ")
		password1, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Print("Confirm password: ")
		password2, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		match := bytes.Equal(password1, password2) && len(password1) > 0
		password := string(password1)
		clear(password1)
		clear(password2)
		if match {
			return password, nil
		}
		if attempt < maxAttempts {
			fmt.Println("❌ Passwords do not match or are empty. Please try again.")
		}
	}
	return "", fmt.Errorf("passwords do not match after %d attempts", maxAttempts)
}
