package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"patient-data-service/config"
	"patient-data-service/internal/encryption"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the encryption key pair",
	Long:  "Manage the RSA key pair used for field-level encryption",
}

// keysProvisionCmd は鍵ペアを生成する。既に存在する場合は読み込むだけで、
// 上書きはしない。
func keysProvisionCmd() *cobra.Command {
	var keySize int
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Generate the RSA key pair if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if keySize == 0 {
				keySize = cfg.RSAKeySize
			}

			keys, err := encryption.LoadOrGenerate(cfg.PrivateKeyPath, cfg.PublicKeyPath, keySize)
			if err != nil {
				return fmt.Errorf("provisioning keys: %w", err)
			}

			return printKeyStatus(cfg, keys)
		},
	}
	cmd.Flags().IntVar(&keySize, "key-size", 0, "RSA key size in bits (defaults to RSA_KEY_SIZE)")
	return cmd
}

// keysStatusCmd は設定されたパスの鍵ペアを表示する。
func keysStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the provisioned key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			keys, err := encryption.LoadKeys(cfg.PrivateKeyPath, cfg.PublicKeyPath)
			if err != nil {
				return fmt.Errorf("keys not available: %w", err)
			}

			return printKeyStatus(cfg, keys)
		},
	}
}

func printKeyStatus(cfg *config.Config, keys *encryption.KeyStore) error {
	if output == "json" {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"fingerprint":      keys.Fingerprint(),
			"bits":             keys.Bits(),
			"private_key_path": cfg.PrivateKeyPath,
			"public_key_path":  cfg.PublicKeyPath,
		})
	}

	fmt.Printf("%-18s %s\n", "Private key:", cfg.PrivateKeyPath)
	fmt.Printf("%-18s %s\n", "Public key:", cfg.PublicKeyPath)
	fmt.Printf("%-18s %s\n", "Fingerprint:", keys.Fingerprint())
	fmt.Printf("%-18s %d bits\n", "Key size:", keys.Bits())
	return nil
}

func init() {
	keysCmd.AddCommand(keysProvisionCmd())
	keysCmd.AddCommand(keysStatusCmd())
}
