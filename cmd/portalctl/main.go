// Package main は運用CLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Patient Data Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .envファイルを読み込む（存在しない場合は無視）
			_ = godotenv.Load()
			if apiURL == "" {
				apiURL = os.Getenv("PORTALCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set PORTALCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("portalctl version %s\n", version)
		},
	}
}

// patientCmd は患者情報の参照コマンド。
func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Inspect patients via the API",
	}
	cmd.AddCommand(patientShowCmd())
	return cmd
}

// patientShowCmd は患者1人を復号済みの状態で表示する。
func patientShowCmd() *cobra.Command {
	var patientID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a patient with decrypted fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientID == "" {
				return fmt.Errorf("--id is required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set PORTALCTL_API_URL)")
			}

			url := fmt.Sprintf("%s/v1/patients/%s", apiURL, patientID)
			resp, err := httpClient.Get(url)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result struct {
					ID               string `json:"id"`
					Name             string `json:"name"`
					DateOfBirth      string `json:"date_of_birth"`
					Gender           string `json:"gender"`
					BloodGroup       string `json:"blood_group"`
					Allergies        string `json:"allergies"`
					EmergencyContact string `json:"emergency_contact"`
					MedicalHistory   string `json:"medical_history"`
				}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}

				fmt.Printf("%-20s %s\n", "ID:", result.ID)
				fmt.Printf("%-20s %s\n", "Name:", result.Name)
				fmt.Printf("%-20s %s\n", "Date of birth:", result.DateOfBirth)
				fmt.Printf("%-20s %s\n", "Gender:", result.Gender)
				fmt.Printf("%-20s %s\n", "Blood group:", result.BloodGroup)
				fmt.Printf("%-20s %s\n", "Allergies:", result.Allergies)
				fmt.Printf("%-20s %s\n", "Emergency contact:", result.EmergencyContact)
				fmt.Printf("%-20s %s\n", "Medical history:", result.MedicalHistory)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "id", "", "Patient ID (required)")
	cmd.MarkFlagRequired("id")
	return cmd
}

// ledgerCmd は台帳の検証コマンド。
func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Verify records against the hash ledger",
	}
	cmd.AddCommand(ledgerVerifyCmd())
	return cmd
}

// ledgerVerifyCmd はレコードの現在値を台帳のアンカーと照合する。
func ledgerVerifyCmd() *cobra.Command {
	var patientID, kind, recordID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a record against its ledger anchor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientID == "" {
				return fmt.Errorf("--patient is required")
			}
			if kind == "" || recordID == "" {
				return fmt.Errorf("--kind and --record are required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set PORTALCTL_API_URL)")
			}

			payload, err := json.Marshal(map[string]string{
				"kind":      kind,
				"record_id": recordID,
			})
			if err != nil {
				return fmt.Errorf("encoding request: %w", err)
			}

			url := fmt.Sprintf("%s/v1/patients/%s/ledger/verify", apiURL, patientID)
			resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}

			var result struct {
				Verified bool `json:"verified"`
				Anchor   *struct {
					Seq       uint64 `json:"seq"`
					EntryHash string `json:"entry_hash"`
				} `json:"anchor"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			if !result.Verified {
				return fmt.Errorf("TAMPER DETECTED: current record hash does not match the ledger anchor")
			}
			fmt.Printf("Verified: record matches ledger anchor (seq %d, entry %s)\n",
				result.Anchor.Seq, result.Anchor.EntryHash)
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "Patient ID (required)")
	cmd.Flags().StringVar(&kind, "kind", "", "Record kind: PATIENT_INFO, VISIT, BILL, REPORT (required)")
	cmd.Flags().StringVar(&recordID, "record", "", "Record ID (required)")
	cmd.MarkFlagRequired("patient")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("record")
	return cmd
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
